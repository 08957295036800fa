package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

const defaultLicenseCacheTTL = 5 * time.Second

// CredentialResolver maps API keys to licenses, optionally through a short-lived cache.
type CredentialResolver struct {
	licenses port.LicenseRepository
	cache    port.LicenseCache
	cacheTTL time.Duration
	policy   domain.DegradationPolicy
	observer CacheObserver
	group    singleflight.Group
	logger   *zap.Logger
}

// NewCredentialResolver constructs a resolver reading straight from the license store.
func NewCredentialResolver(licenses port.LicenseRepository, logger *zap.Logger) *CredentialResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialResolver{
		licenses: licenses,
		cacheTTL: defaultLicenseCacheTTL,
		policy:   domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient),
		observer: nopObserver{},
		logger:   logger,
	}
}

// WithCache enables the license cache. The TTL bounds how long a blocked or rotated
// license may still be served when an invalidation is missed.
func (r *CredentialResolver) WithCache(cache port.LicenseCache, ttl time.Duration, policy domain.DegradationPolicy) *CredentialResolver {
	r.cache = cache
	if ttl > 0 {
		r.cacheTTL = ttl
	}
	r.policy = policy
	return r
}

// WithObserver installs a cache lookup observer.
func (r *CredentialResolver) WithObserver(observer CacheObserver) *CredentialResolver {
	if observer != nil {
		r.observer = observer
	}
	return r
}

// ResolveLicense returns the license selected by the API key together with its client and
// granted catalog entries. Usability is not evaluated here.
func (r *CredentialResolver) ResolveLicense(ctx context.Context, apiKey string) (*domain.License, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrNoSuchTenant
	}

	if r.cache != nil {
		license, err := r.cache.GetLicense(ctx, apiKey)
		switch {
		case err == nil:
			r.observer.ObserveCacheLookup(CacheResultHit)
			return license, nil
		case errors.Is(err, repository.ErrNotFound):
			r.observer.ObserveCacheLookup(CacheResultMiss)
		default:
			r.observer.ObserveCacheLookup(CacheResultError)
			reason := domain.DegradationReasonCacheUnavailable
			if errors.Is(err, repository.ErrCorrupt) {
				reason = domain.DegradationReasonCacheCorrupt
			}
			if !r.policy.AllowsFallback(reason) {
				return nil, fmt.Errorf("read license cache: %w", err)
			}
			r.logger.Warn("license cache degraded, reading from store",
				zap.String("reason", string(reason)),
				zap.Error(err),
			)
		}
	}

	// The shared load must outlive any single caller: waiters joined on the
	// same key keep their own deadlines through the select below.
	loadCtx := context.WithoutCancel(ctx)
	results := r.group.DoChan(security.HashToken(apiKey), func() (any, error) {
		return r.load(loadCtx, apiKey)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("resolve license: %w", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		license := cloneLicense(res.Val.(*domain.License))
		return &license, nil
	}
}

// Invalidate drops any cached entry for the API key.
func (r *CredentialResolver) Invalidate(ctx context.Context, apiKey string) error {
	if r.cache == nil || strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if err := r.cache.DeleteLicense(ctx, apiKey); err != nil {
		return fmt.Errorf("invalidate license cache: %w", err)
	}
	return nil
}

func (r *CredentialResolver) load(ctx context.Context, apiKey string) (*domain.License, error) {
	license, err := r.licenses.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoSuchTenant
		}
		return nil, fmt.Errorf("lookup license by api key: %w", err)
	}
	if license.Credential != nil && !license.Credential.IsActive {
		return nil, ErrNoSuchTenant
	}

	if r.cache != nil {
		if err := r.cache.SetLicense(ctx, apiKey, *license, r.cacheTTL); err != nil {
			r.logger.Warn("cache license failed",
				zap.String("license_id", license.ID),
				zap.Error(err),
			)
		}
	}

	return license, nil
}

func cloneLicense(src *domain.License) domain.License {
	dst := *src
	if src.Client != nil {
		client := *src.Client
		dst.Client = &client
	}
	if src.Credential != nil {
		credential := *src.Credential
		dst.Credential = &credential
	}
	if src.Modules != nil {
		dst.Modules = append([]domain.Module(nil), src.Modules...)
	}
	if src.Features != nil {
		dst.Features = append([]domain.Feature(nil), src.Features...)
	}
	return dst
}
