package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
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

const refreshTokensTable = "authz.refresh_tokens"

var refreshTokenColumns = []string{
	"id", "user_id", "license_id", "family_id", "token_hash", "created_at", "expires_at",
	"used_at", "revoked_at", "replaced_by", "metadata",
}

// revokeFamilySQL stamps every live token of a family and records the reason in its metadata.
const revokeFamilySQL = `
WITH updated AS (
	UPDATE authz.refresh_tokens
	   SET revoked_at = now(),
	       metadata = CASE WHEN $2::text IS NULL THEN metadata
	                       ELSE jsonb_set(COALESCE(metadata, '{}'::jsonb), '{revoked_reason}', to_jsonb($2::text), true)
	                  END
	 WHERE family_id = $1 AND revoked_at IS NULL
	 RETURNING 1
)
SELECT count(*) FROM updated`

// TokenRepository stores hashed refresh tokens grouped into rotation families.
type TokenRepository struct {
	exec pgExecutor
}

// NewTokenRepository constructs a new token repository.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{exec: exec}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{exec: tx}
}

// CreateRefreshToken persists a refresh token. A token without a family starts its own.
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error {
	metadata, err := marshalMetadata(token.Metadata)
	if err != nil {
		return fmt.Errorf("prepare refresh token metadata: %w", err)
	}

	familyID := strings.TrimSpace(token.FamilyID)
	if familyID == "" {
		familyID = token.ID
	}

	stmt, args, err := psql.Insert(refreshTokensTable).
		Columns(refreshTokenColumns...).
		Values(
			token.ID, token.UserID, token.LicenseID, familyID, token.TokenHash,
			token.CreatedAt.UTC(), token.ExpiresAt.UTC(),
			optionalTime(token.UsedAt), optionalTime(token.RevokedAt), optionalString(token.ReplacedBy),
			metadata,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// GetRefreshTokenByHash fetches a refresh token by its hash, whatever its state.
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	stmt, args, err := psql.Select(refreshTokenColumns...).
		From(refreshTokensTable).
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	return scanRefreshToken(r.exec.QueryRow(ctx, stmt, args...))
}

// RotateRefreshToken consumes the current token and stores its successor in one transaction.
// The consuming update only matches a token that is still unused, unrevoked and unexpired, so
// of several concurrent callers exactly one observes an affected row.
func (r *TokenRepository) RotateRefreshToken(ctx context.Context, currentID string, usedAt time.Time, next domain.RefreshToken) error {
	beginner, ok := r.exec.(txBeginner)
	if !ok {
		return fmt.Errorf("rotate refresh token: executor does not support transactions")
	}

	usedAt = usedAt.UTC()
	stmt, args, err := psql.Update(refreshTokensTable).
		Set("used_at", usedAt).
		Set("replaced_by", next.ID).
		Where(squirrel.Eq{"id": currentID, "used_at": nil, "revoked_at": nil}).
		Where(squirrel.Gt{"expires_at": usedAt}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume refresh token sql: %w", err)
	}

	return inTx(ctx, beginner, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrConflict
		}
		return r.WithTx(tx).CreateRefreshToken(ctx, next)
	})
}

// RevokeRefreshTokensByFamily revokes all live tokens of a family and reports how many it
// touched. A family with nothing left to revoke yields zero.
func (r *TokenRepository) RevokeRefreshTokensByFamily(ctx context.Context, familyID string, reason string) (int, error) {
	var reasonArg any
	if reason = strings.TrimSpace(reason); reason != "" {
		reasonArg = reason
	}

	var count int
	if err := r.exec.QueryRow(ctx, revokeFamilySQL, familyID, reasonArg).Scan(&count); err != nil {
		return 0, fmt.Errorf("revoke refresh tokens by family: %w", err)
	}
	return count, nil
}

func scanRefreshToken(row pgx.Row) (*domain.RefreshToken, error) {
	var (
		token      domain.RefreshToken
		usedAt     sql.NullTime
		revokedAt  sql.NullTime
		replacedBy sql.NullString
		metadata   []byte
	)

	err := row.Scan(
		&token.ID, &token.UserID, &token.LicenseID, &token.FamilyID, &token.TokenHash,
		&token.CreatedAt, &token.ExpiresAt, &usedAt, &revokedAt, &replacedBy, &metadata,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	token.UsedAt = nullableTimePtr(usedAt)
	token.RevokedAt = nullableTimePtr(revokedAt)
	token.ReplacedBy = nullableStringPtr(replacedBy)
	if token.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, fmt.Errorf("decode refresh token %s metadata: %w", token.ID, repository.ErrCorrupt)
	}
	return &token, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	return json.Marshal(meta)
}

func unmarshalMetadata(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(payload, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

var _ port.TokenRepository = (*TokenRepository)(nil)
