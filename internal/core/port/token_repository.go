package port

import (
	"context"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// TokenRepository manages refresh token records.
type TokenRepository interface {
	CreateRefreshToken(ctx context.Context, token domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// RotateRefreshToken consumes currentID and records next in a single atomic step.
	// It returns repository.ErrConflict when currentID was already consumed, revoked or expired.
	RotateRefreshToken(ctx context.Context, currentID string, usedAt time.Time, next domain.RefreshToken) error
	RevokeRefreshTokensByFamily(ctx context.Context, familyID string, reason string) (int, error)
}
