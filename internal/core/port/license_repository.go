package port

import (
	"context"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// LicenseRepository reads licenses with their credential, client and granted catalog entries.
type LicenseRepository interface {
	// GetByAPIKey resolves an active credential to its license. Unknown or inactive
	// credentials yield repository.ErrNotFound.
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.License, error)
	GetByID(ctx context.Context, licenseID string) (*domain.License, error)
	SetBlocked(ctx context.Context, licenseID string, reason string, at time.Time) error
	ClearBlocked(ctx context.Context, licenseID string) error
	// RotateCredential replaces the license's API key value, returning the updated credential.
	RotateCredential(ctx context.Context, licenseID string, newKey string, at time.Time) (*domain.Credential, error)
}
