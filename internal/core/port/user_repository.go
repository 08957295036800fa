package port

import (
	"context"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// UserRepository exposes the read side of the external user store.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
