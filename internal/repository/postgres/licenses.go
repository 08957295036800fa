package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

var licenseColumns = []string{
	"l.id",
	"l.name",
	"l.client_id",
	"l.application_id",
	"l.valid_from",
	"l.valid_until",
	"l.is_active",
	"l.blocked",
	"l.block_reason",
	"l.blocked_at",
	"l.max_users",
	"c.name",
	"c.tax_id",
	"c.is_active",
	"c.external_data",
	"c.external_data_url",
	"c.created_at",
	"k.id",
	"k.key",
	"k.is_active",
	"k.created_at",
}

// LicenseRepository implements port.LicenseRepository backed by PostgreSQL.
type LicenseRepository struct {
	exec pgExecutor
}

// NewLicenseRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewLicenseRepository(exec pgExecutor) *LicenseRepository {
	return &LicenseRepository{exec: exec}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *LicenseRepository) WithTx(tx pgx.Tx) *LicenseRepository {
	if tx == nil {
		return r
	}
	return &LicenseRepository{exec: tx}
}

// GetByAPIKey loads the license owning an active credential.
func (r *LicenseRepository) GetByAPIKey(ctx context.Context, apiKey string) (*domain.License, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, repository.ErrNotFound
	}

	stmt, args, err := r.selectLicense().
		Join("authz.api_keys k ON k.license_id = l.id").
		Where(squirrel.Eq{"k.key": apiKey, "k.is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select license by api key sql: %w", err)
	}

	license, err := scanLicense(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadCatalog(ctx, license); err != nil {
		return nil, err
	}
	return license, nil
}

// GetByID loads a license with its client, credential and granted catalog entries.
func (r *LicenseRepository) GetByID(ctx context.Context, licenseID string) (*domain.License, error) {
	stmt, args, err := r.selectLicense().
		Join("authz.api_keys k ON k.license_id = l.id").
		Where(squirrel.Eq{"l.id": licenseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select license sql: %w", err)
	}

	license, err := scanLicense(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadCatalog(ctx, license); err != nil {
		return nil, err
	}
	return license, nil
}

// SetBlocked flags the license as blocked with the supplied reason.
func (r *LicenseRepository) SetBlocked(ctx context.Context, licenseID string, reason string, at time.Time) error {
	stmt, args, err := psql.Update("authz.licenses").
		Set("blocked", true).
		Set("block_reason", strings.TrimSpace(reason)).
		Set("blocked_at", at.UTC()).
		Where(squirrel.Eq{"id": licenseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build block license sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("block license: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ClearBlocked lifts a block and forgets its reason.
func (r *LicenseRepository) ClearBlocked(ctx context.Context, licenseID string) error {
	stmt, args, err := psql.Update("authz.licenses").
		Set("blocked", false).
		Set("block_reason", nil).
		Set("blocked_at", nil).
		Where(squirrel.Eq{"id": licenseID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build unblock license sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("unblock license: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RotateCredential overwrites the key value of the license's credential.
func (r *LicenseRepository) RotateCredential(ctx context.Context, licenseID string, newKey string, at time.Time) (*domain.Credential, error) {
	stmt, args, err := psql.Update("authz.api_keys").
		Set("key", newKey).
		Set("created_at", at.UTC()).
		Where(squirrel.Eq{"license_id": licenseID}).
		Suffix("RETURNING id, license_id, key, is_active, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rotate credential sql: %w", err)
	}

	var credential domain.Credential
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&credential.ID,
		&credential.LicenseID,
		&credential.Key,
		&credential.IsActive,
		&credential.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("rotate credential: %w", err)
	}
	return &credential, nil
}

func (r *LicenseRepository) selectLicense() squirrel.SelectBuilder {
	return psql.
		Select(licenseColumns...).
		From("authz.licenses l").
		Join("authz.clients c ON c.id = l.client_id")
}

func (r *LicenseRepository) loadCatalog(ctx context.Context, license *domain.License) error {
	modules, err := r.listModules(ctx, license.ID)
	if err != nil {
		return err
	}
	features, err := r.listFeatures(ctx, license.ID)
	if err != nil {
		return err
	}
	license.Modules = modules
	license.Features = features
	return nil
}

func (r *LicenseRepository) listModules(ctx context.Context, licenseID string) ([]domain.Module, error) {
	stmt, args, err := psql.
		Select("m.id", "m.application_id", "m.key", "m.name").
		From("authz.license_modules lm").
		Join("authz.modules m ON m.id = lm.module_id").
		Where(squirrel.Eq{"lm.license_id": licenseID}).
		OrderBy("m.key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list license modules sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query license modules: %w", err)
	}
	defer rows.Close()

	modules := make([]domain.Module, 0)
	for rows.Next() {
		var module domain.Module
		if err := rows.Scan(&module.ID, &module.ApplicationID, &module.Key, &module.Name); err != nil {
			return nil, fmt.Errorf("scan license module: %w", err)
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate license modules: %w", err)
	}
	return modules, nil
}

func (r *LicenseRepository) listFeatures(ctx context.Context, licenseID string) ([]domain.Feature, error) {
	stmt, args, err := psql.
		Select("f.id", "f.module_id", "f.key", "f.name").
		From("authz.license_features lf").
		Join("authz.features f ON f.id = lf.feature_id").
		Join("authz.license_modules lm ON lm.license_id = lf.license_id AND lm.module_id = f.module_id").
		Where(squirrel.Eq{"lf.license_id": licenseID}).
		OrderBy("f.key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list license features sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query license features: %w", err)
	}
	defer rows.Close()

	features := make([]domain.Feature, 0)
	for rows.Next() {
		var feature domain.Feature
		if err := rows.Scan(&feature.ID, &feature.ModuleID, &feature.Key, &feature.Name); err != nil {
			return nil, fmt.Errorf("scan license feature: %w", err)
		}
		features = append(features, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate license features: %w", err)
	}
	return features, nil
}

func scanLicense(row pgx.Row) (*domain.License, error) {
	var (
		license         domain.License
		client          domain.Client
		credential      domain.Credential
		validUntil      time.Time
		blockReason     sql.NullString
		blockedAt       sql.NullTime
		externalDataURL sql.NullString
	)

	if err := row.Scan(
		&license.ID,
		&license.Name,
		&license.ClientID,
		&license.ApplicationID,
		&license.ValidFrom,
		&validUntil,
		&license.IsActive,
		&license.Blocked,
		&blockReason,
		&blockedAt,
		&license.MaxUsers,
		&client.Name,
		&client.TaxID,
		&client.IsActive,
		&client.ExternalData,
		&externalDataURL,
		&client.CreatedAt,
		&credential.ID,
		&credential.Key,
		&credential.IsActive,
		&credential.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan license: %w", err)
	}

	// valid_until is a calendar date; the whole day is usable.
	license.ValidUntil = domain.EndOfDay(validUntil.UTC())
	license.ValidFrom = license.ValidFrom.UTC()
	license.BlockReason = nullableStringPtr(blockReason)
	license.BlockedAt = nullableTimePtr(blockedAt)

	client.ID = license.ClientID
	client.ExternalDataURL = nullableStringPtr(externalDataURL)
	credential.LicenseID = license.ID

	license.Client = &client
	license.Credential = &credential
	return &license, nil
}

var _ port.LicenseRepository = (*LicenseRepository)(nil)
