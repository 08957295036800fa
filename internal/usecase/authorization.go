package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
)

// LicenseResolver resolves an API key to its license.
type LicenseResolver interface {
	ResolveLicense(ctx context.Context, apiKey string) (*domain.License, error)
}

// EntitlementSource aggregates a user's permissions under a license.
type EntitlementSource interface {
	Aggregate(ctx context.Context, userID string, license domain.License) (domain.FeaturePermissionMap, error)
}

// DecisionEngine answers whether a user may perform an action on a feature under the
// license selected by an API key. It performs no writes.
type DecisionEngine struct {
	resolver     LicenseResolver
	entitlements EntitlementSource
	observer     DecisionObserver
	logger       *zap.Logger
	now          func() time.Time
}

// NewDecisionEngine constructs a DecisionEngine.
func NewDecisionEngine(resolver LicenseResolver, entitlements EntitlementSource, log *zap.Logger) *DecisionEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &DecisionEngine{
		resolver:     resolver,
		entitlements: entitlements,
		observer:     nopObserver{},
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the engine clock for deterministic tests.
func (e *DecisionEngine) WithClock(clock func() time.Time) {
	if clock != nil {
		e.now = clock
	}
}

// WithObserver installs a decision observer.
func (e *DecisionEngine) WithObserver(observer DecisionObserver) *DecisionEngine {
	if observer != nil {
		e.observer = observer
	}
	return e
}

// Authorize evaluates the request. Expected denials are returned as a Decision with a nil
// error; a non-nil error signals an infrastructure failure and the Decision is never allowed.
func (e *DecisionEngine) Authorize(ctx context.Context, apiKey, userID, featureKey string, action domain.Action) (domain.Decision, error) {
	license, decision, err := e.usableLicense(ctx, apiKey)
	if err != nil {
		return domain.Decision{}, err
	}
	if license == nil {
		return e.record(ctx, decision, featureKey, action), nil
	}

	permissions, err := e.entitlements.Aggregate(ctx, userID, *license)
	if err != nil {
		return domain.Decision{}, err
	}

	flags, ok := permissions.Lookup(featureKey)
	switch {
	case !ok:
		decision = domain.Deny(domain.DenyReasonNoGrant, license)
	case !flags.Allows(action):
		decision = domain.Deny(domain.DenyReasonActionNotGranted, license)
	default:
		decision = domain.Allow(license)
	}

	return e.record(ctx, decision, featureKey, action), nil
}

// Entitlements returns the caller's snapshot under the license selected by the API key.
// A nil snapshot comes with the denying decision explaining why the license cannot be used.
func (e *DecisionEngine) Entitlements(ctx context.Context, apiKey, userID string) (*domain.EntitlementSnapshot, domain.Decision, error) {
	license, decision, err := e.usableLicense(ctx, apiKey)
	if err != nil {
		return nil, domain.Decision{}, err
	}
	if license == nil {
		return nil, decision, nil
	}

	permissions, err := e.entitlements.Aggregate(ctx, userID, *license)
	if err != nil {
		return nil, domain.Decision{}, err
	}

	snapshot := NewSnapshot(*license, permissions, e.now())
	return &snapshot, domain.Allow(license), nil
}

func (e *DecisionEngine) usableLicense(ctx context.Context, apiKey string) (*domain.License, domain.Decision, error) {
	license, err := e.resolver.ResolveLicense(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrNoSuchTenant) {
			return nil, domain.Deny(domain.DenyReasonNoSuchTenant, nil), nil
		}
		return nil, domain.Decision{}, err
	}

	if usable, reason := license.Usability(e.now()); !usable {
		decision := domain.Deny(domain.DenyReasonLicenseUnusable, license)
		decision.Detail = reason
		return nil, decision, nil
	}

	return license, domain.Decision{}, nil
}

func (e *DecisionEngine) record(ctx context.Context, decision domain.Decision, featureKey string, action domain.Action) domain.Decision {
	e.observer.ObserveDecision(decision)
	if !decision.Allowed {
		e.logger.Info("authorization denied",
			zap.String("request_id", logger.RequestIDFromContext(ctx)),
			zap.String("reason", string(decision.Reason)),
			zap.String("detail", string(decision.Detail)),
			zap.String("license_id", decision.LicenseID),
			zap.String("feature", featureKey),
			zap.String("action", string(action)),
		)
	}
	return decision
}
