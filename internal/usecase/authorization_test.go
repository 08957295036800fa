package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

func TestAuthorize_FrotasScenario(t *testing.T) {
	fixture := newFrotasFixture()
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil))
	ctx := context.Background()

	decision, err := engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, frotasLicenseID, decision.LicenseID)
	require.Equal(t, frotasClientID, decision.ClientID)

	decision, err = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionCreate)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, domain.DenyReasonActionNotGranted, decision.Reason)

	decision, err = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Outra-Feature", domain.ActionView)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, domain.DenyReasonNoGrant, decision.Reason)
}

func TestAuthorize_BlockingTakesEffectImmediately(t *testing.T) {
	fixture := newFrotasFixture()
	cache := newLicenseCacheStub()
	resolver := NewCredentialResolver(fixture.licenses, nil).
		WithCache(cache, time.Minute, domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient))
	engine := fixture.engine(resolver)
	ctx := context.Background()

	decision, err := engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Contains(t, cache.entries, frotasAPIKey, "first resolution should populate the cache")

	admin := NewLicenseService(fixture.licenses, resolver, nil)
	admin.WithClock(func() time.Time { return frotasNow })
	_, err = admin.Block(ctx, frotasLicenseID, "invoice overdue", "backoffice")
	require.NoError(t, err)

	for _, action := range domain.Actions {
		decision, err = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", action)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		require.Equal(t, domain.DenyReasonLicenseUnusable, decision.Reason)
		require.Equal(t, domain.UnusableReasonBlocked, decision.Detail)
	}

	grants, err := fixture.profiles.ListMemberships(ctx, frotasUserID, frotasLicenseID)
	require.NoError(t, err)
	require.Len(t, grants, 1, "profile data must be untouched by blocking")
}

func TestAuthorize_InclusiveEndDate(t *testing.T) {
	fixture := newFrotasFixture()
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil))
	ctx := context.Background()

	lastMoment := time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC)
	engine.WithClock(func() time.Time { return lastMoment })
	decision, err := engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.True(t, decision.Allowed, "the whole end day is usable")

	engine.WithClock(func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) })
	decision, err = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, domain.DenyReasonLicenseUnusable, decision.Reason)
	require.Equal(t, domain.UnusableReasonExpired, decision.Detail)
}

func TestAuthorize_UnknownOrInactiveCredential(t *testing.T) {
	fixture := newFrotasFixture()
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil))
	ctx := context.Background()

	for _, key := range []string{"", "   ", "flk_unknown"} {
		decision, err := engine.Authorize(ctx, key, frotasUserID, "Funcionarios", domain.ActionView)
		require.NoError(t, err)
		require.False(t, decision.Allowed)
		require.Equal(t, domain.DenyReasonNoSuchTenant, decision.Reason)
	}

	license := fixture.licenses.licenses[frotasLicenseID]
	license.Credential.IsActive = false
	fixture.licenses.licenses[frotasLicenseID] = license

	decision, err := engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.Equal(t, domain.DenyReasonNoSuchTenant, decision.Reason)
}

func TestAuthorize_UserWithoutProfileGetsNoGrant(t *testing.T) {
	fixture := newFrotasFixture()
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil))

	decision, err := engine.Authorize(context.Background(), frotasAPIKey, "user-without-profile", "Funcionarios", domain.ActionView)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, domain.DenyReasonNoGrant, decision.Reason)
}

func TestAuthorize_InfrastructureFailureIsNotADenial(t *testing.T) {
	fixture := newFrotasFixture()
	fixture.profiles.listErr = errors.New("connection refused")
	observer := &recordingObserver{}
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil)).WithObserver(observer)

	decision, err := engine.Authorize(context.Background(), frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.Error(t, err)
	require.False(t, decision.Allowed)
	require.Empty(t, decision.Reason)
	require.Empty(t, observer.decisions)

	fixture.profiles.listErr = nil
	fixture.licenses.getErr = errors.New("pool exhausted")
	_, err = engine.Authorize(context.Background(), frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoSuchTenant))
	require.False(t, errors.Is(err, repository.ErrNotFound))
}

func TestAuthorize_ObservesDecisions(t *testing.T) {
	fixture := newFrotasFixture()
	observer := &recordingObserver{}
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil)).WithObserver(observer)
	ctx := context.Background()

	_, _ = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionView)
	_, _ = engine.Authorize(ctx, frotasAPIKey, frotasUserID, "Funcionarios", domain.ActionPrint)

	require.Len(t, observer.decisions, 2)
	require.Equal(t, "allow", observer.decisions[0].Outcome())
	require.Equal(t, domain.DenyReasonActionNotGranted, observer.decisions[1].Reason)
}

func TestEntitlements_Snapshot(t *testing.T) {
	fixture := newFrotasFixture()
	engine := fixture.engine(NewCredentialResolver(fixture.licenses, nil))
	ctx := context.Background()

	snapshot, decision, err := engine.Entitlements(ctx, frotasAPIKey, frotasUserID)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.NotNil(t, snapshot)
	require.Equal(t, []string{"Configuracao"}, snapshot.Modules)
	require.Equal(t, domain.FeaturePermissionMap{"Funcionarios": {View: true}}, snapshot.Permissions)
	require.Equal(t, frotasNow, snapshot.GeneratedAt)

	snapshot, decision, err = engine.Entitlements(ctx, "flk_unknown", frotasUserID)
	require.NoError(t, err)
	require.Nil(t, snapshot)
	require.Equal(t, domain.DenyReasonNoSuchTenant, decision.Reason)
}
