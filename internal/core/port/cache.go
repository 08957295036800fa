package port

import (
	"context"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// LicenseCache keeps recently resolved licenses keyed by API key for a short TTL.
// GetLicense returns repository.ErrNotFound on a miss.
type LicenseCache interface {
	GetLicense(ctx context.Context, apiKey string) (*domain.License, error)
	SetLicense(ctx context.Context, apiKey string, license domain.License, ttl time.Duration) error
	DeleteLicense(ctx context.Context, apiKey string) error
}
