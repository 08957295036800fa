package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

// ProfileRepository implements port.ProfileRepository backed by PostgreSQL.
type ProfileRepository struct {
	exec pgExecutor
}

// NewProfileRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{exec: exec}
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *ProfileRepository) WithTx(tx pgx.Tx) *ProfileRepository {
	if tx == nil {
		return r
	}
	return &ProfileRepository{exec: tx}
}

// ListMemberships returns every profile the user holds in the license along with its feature grants.
// Inactive profiles are returned too; filtering is the aggregator's job.
func (r *ProfileRepository) ListMemberships(ctx context.Context, userID, licenseID string) ([]domain.ProfileMembership, error) {
	stmt, args, err := psql.
		Select(
			"p.id",
			"p.license_id",
			"p.name",
			"p.is_active",
			"p.created_at",
			"pf.feature_id",
			"f.key",
			"pf.can_view",
			"pf.can_create",
			"pf.can_modify",
			"pf.can_delete",
			"pf.can_print",
		).
		From("authz.profile_users pu").
		Join("authz.profiles p ON p.id = pu.profile_id").
		LeftJoin("authz.profile_features pf ON pf.profile_id = p.id").
		LeftJoin("authz.features f ON f.id = pf.feature_id").
		Where(squirrel.Eq{"pu.user_id": userID, "p.license_id": licenseID}).
		OrderBy("p.id", "f.key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list memberships sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]domain.ProfileMembership, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			profile    domain.Profile
			featureID  sql.NullString
			featureKey sql.NullString
			canView    sql.NullBool
			canCreate  sql.NullBool
			canModify  sql.NullBool
			canDelete  sql.NullBool
			canPrint   sql.NullBool
		)
		if err := rows.Scan(
			&profile.ID,
			&profile.LicenseID,
			&profile.Name,
			&profile.IsActive,
			&profile.CreatedAt,
			&featureID,
			&featureKey,
			&canView,
			&canCreate,
			&canModify,
			&canDelete,
			&canPrint,
		); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}

		pos, ok := index[profile.ID]
		if !ok {
			pos = len(memberships)
			index[profile.ID] = pos
			memberships = append(memberships, domain.ProfileMembership{
				Profile: profile,
				Grants:  []domain.ProfileFeatureGrant{},
			})
		}
		// A profile without grants still comes back once with NULL feature columns.
		if !featureID.Valid {
			continue
		}
		memberships[pos].Grants = append(memberships[pos].Grants, domain.ProfileFeatureGrant{
			ProfileID:  profile.ID,
			FeatureID:  featureID.String,
			FeatureKey: featureKey.String,
			Flags: domain.PermissionFlags{
				View:   canView.Bool,
				Create: canCreate.Bool,
				Modify: canModify.Bool,
				Delete: canDelete.Bool,
				Print:  canPrint.Bool,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

// Create inserts a profile.
func (r *ProfileRepository) Create(ctx context.Context, profile domain.Profile) error {
	stmt, args, err := psql.Insert("authz.profiles").
		Columns("id", "license_id", "name", "is_active", "created_at").
		Values(profile.ID, profile.LicenseID, profile.Name, profile.IsActive, profile.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert profile sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// GetByID fetches a profile by identifier.
func (r *ProfileRepository) GetByID(ctx context.Context, profileID string) (*domain.Profile, error) {
	stmt, args, err := psql.
		Select("id", "license_id", "name", "is_active", "created_at").
		From("authz.profiles").
		Where(squirrel.Eq{"id": profileID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	var profile domain.Profile
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&profile.ID,
		&profile.LicenseID,
		&profile.Name,
		&profile.IsActive,
		&profile.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &profile, nil
}

// UpsertGrant records the flags of a profile for a feature, replacing previous flags.
func (r *ProfileRepository) UpsertGrant(ctx context.Context, grant domain.ProfileFeatureGrant) error {
	stmt, args, err := psql.Insert("authz.profile_features").
		Columns("profile_id", "feature_id", "can_view", "can_create", "can_modify", "can_delete", "can_print").
		Values(
			grant.ProfileID,
			grant.FeatureID,
			grant.Flags.View,
			grant.Flags.Create,
			grant.Flags.Modify,
			grant.Flags.Delete,
			grant.Flags.Print,
		).
		Suffix(`ON CONFLICT (profile_id, feature_id) DO UPDATE SET
			can_view = EXCLUDED.can_view,
			can_create = EXCLUDED.can_create,
			can_modify = EXCLUDED.can_modify,
			can_delete = EXCLUDED.can_delete,
			can_print = EXCLUDED.can_print`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert grant sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

// AssignUser links a user to a profile of the license. Re-assigning is a no-op. The license
// row is locked for the duration of the transaction so concurrent assignments are counted
// one after another; a user without any profile under the license takes a seat and is
// refused with repository.ErrLimitReached when max_users users are already seated.
// A max_users of zero means no cap.
func (r *ProfileRepository) AssignUser(ctx context.Context, assignment domain.ProfileAssignment, licenseID string) error {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		return fmt.Errorf("assign profile user: executor does not support transactions")
	}

	stmt, args, err := psql.Insert("authz.profile_users").
		Columns("profile_id", "user_id", "assigned_at").
		Values(assignment.ProfileID, assignment.UserID, assignment.AssignedAt.UTC()).
		Suffix("ON CONFLICT (profile_id, user_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign profile user sql: %w", err)
	}

	return inTx(ctx, beginner, func(tx pgx.Tx) error {
		scoped := r.WithTx(tx)
		maxUsers, err := scoped.lockLicenseSeats(ctx, licenseID)
		if err != nil {
			return err
		}
		if maxUsers > 0 {
			seated, err := scoped.holdsLicense(ctx, assignment.UserID, licenseID)
			if err != nil {
				return err
			}
			if !seated {
				count, err := scoped.CountLicenseUsers(ctx, licenseID)
				if err != nil {
					return err
				}
				if count >= maxUsers {
					return repository.ErrLimitReached
				}
			}
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("assign profile user: %w", err)
		}
		return nil
	})
}

func (r *ProfileRepository) lockLicenseSeats(ctx context.Context, licenseID string) (int, error) {
	stmt, args, err := psql.
		Select("max_users").
		From("authz.licenses").
		Where(squirrel.Eq{"id": licenseID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build lock license sql: %w", err)
	}

	var maxUsers int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&maxUsers); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("lock license: %w", err)
	}
	return maxUsers, nil
}

func (r *ProfileRepository) holdsLicense(ctx context.Context, userID, licenseID string) (bool, error) {
	stmt, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("authz.profile_users pu").
		Join("authz.profiles p ON p.id = pu.profile_id").
		Where(squirrel.Eq{"pu.user_id": userID, "p.license_id": licenseID}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build license membership sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check license membership: %w", err)
	}
	return exists, nil
}

// UnassignUser removes a profile assignment.
func (r *ProfileRepository) UnassignUser(ctx context.Context, profileID, userID string) error {
	stmt, args, err := psql.Delete("authz.profile_users").
		Where(squirrel.Eq{"profile_id": profileID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build unassign profile user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("unassign profile user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountLicenseUsers counts distinct users assigned to any profile of the license.
func (r *ProfileRepository) CountLicenseUsers(ctx context.Context, licenseID string) (int, error) {
	stmt, args, err := psql.
		Select("COUNT(DISTINCT pu.user_id)").
		From("authz.profile_users pu").
		Join("authz.profiles p ON p.id = pu.profile_id").
		Where(squirrel.Eq{"p.license_id": licenseID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count license users sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count license users: %w", err)
	}
	return count, nil
}

var _ port.ProfileRepository = (*ProfileRepository)(nil)
