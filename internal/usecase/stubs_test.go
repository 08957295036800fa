package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testJWTManager(t *testing.T) *security.JWTManager {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return security.NewJWTManager(security.StaticKeyProvider{KID: "test", Key: testKey}, "test")
}

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{}
	cfg.App.Name = "license-authz"
	cfg.JWT.AccessTokenTTL = 10 * time.Minute
	cfg.JWT.RefreshTokenTTL = 24 * time.Hour
	return cfg
}

// licenseStore is an in-memory port.LicenseRepository.
type licenseStore struct {
	mu       sync.Mutex
	licenses map[string]domain.License
	calls    int
	getErr   error
	gate     chan struct{}
}

var _ port.LicenseRepository = (*licenseStore)(nil)

func newLicenseStore(licenses ...domain.License) *licenseStore {
	store := &licenseStore{licenses: make(map[string]domain.License)}
	for _, license := range licenses {
		store.licenses[license.ID] = license
	}
	return store
}

func (s *licenseStore) GetByAPIKey(ctx context.Context, apiKey string) (*domain.License, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	// Behave like a driver: a cancelled context aborts the query.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	for _, license := range s.licenses {
		if license.Credential != nil && license.Credential.Key == apiKey && license.Credential.IsActive {
			copied := cloneLicense(&license)
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *licenseStore) GetByID(_ context.Context, licenseID string) (*domain.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	license, ok := s.licenses[licenseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := cloneLicense(&license)
	return &copied, nil
}

func (s *licenseStore) SetBlocked(_ context.Context, licenseID, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	license, ok := s.licenses[licenseID]
	if !ok {
		return repository.ErrNotFound
	}
	license.Block(at, reason)
	s.licenses[licenseID] = license
	return nil
}

func (s *licenseStore) ClearBlocked(_ context.Context, licenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	license, ok := s.licenses[licenseID]
	if !ok {
		return repository.ErrNotFound
	}
	license.Unblock()
	s.licenses[licenseID] = license
	return nil
}

func (s *licenseStore) RotateCredential(_ context.Context, licenseID, newKey string, at time.Time) (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	license, ok := s.licenses[licenseID]
	if !ok || license.Credential == nil {
		return nil, repository.ErrNotFound
	}
	credential := *license.Credential
	credential.Key = newKey
	credential.CreatedAt = at
	license.Credential = &credential
	s.licenses[licenseID] = license
	return &credential, nil
}

func (s *licenseStore) lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// profileStore is an in-memory port.ProfileRepository.
type profileStore struct {
	mu          sync.Mutex
	profiles    map[string]domain.Profile
	grants      map[string]map[string]domain.ProfileFeatureGrant
	assignments map[string]map[string]time.Time
	listErr     error
	// seatLimit reports a license's max_users; nil means uncapped.
	seatLimit func(licenseID string) int
}

var _ port.ProfileRepository = (*profileStore)(nil)

func newProfileStore() *profileStore {
	return &profileStore{
		profiles:    make(map[string]domain.Profile),
		grants:      make(map[string]map[string]domain.ProfileFeatureGrant),
		assignments: make(map[string]map[string]time.Time),
	}
}

func (s *profileStore) ListMemberships(_ context.Context, userID, licenseID string) ([]domain.ProfileMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}

	ids := make([]string, 0)
	for profileID, users := range s.assignments {
		if _, ok := users[userID]; ok && s.profiles[profileID].LicenseID == licenseID {
			ids = append(ids, profileID)
		}
	}
	sort.Strings(ids)

	memberships := make([]domain.ProfileMembership, 0, len(ids))
	for _, id := range ids {
		membership := domain.ProfileMembership{Profile: s.profiles[id]}
		for _, grant := range s.grants[id] {
			membership.Grants = append(membership.Grants, grant)
		}
		sort.Slice(membership.Grants, func(i, j int) bool {
			return membership.Grants[i].FeatureID < membership.Grants[j].FeatureID
		})
		memberships = append(memberships, membership)
	}
	return memberships, nil
}

func (s *profileStore) Create(_ context.Context, profile domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
	return nil
}

func (s *profileStore) GetByID(_ context.Context, profileID string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[profileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

func (s *profileStore) UpsertGrant(_ context.Context, grant domain.ProfileFeatureGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grants[grant.ProfileID] == nil {
		s.grants[grant.ProfileID] = make(map[string]domain.ProfileFeatureGrant)
	}
	s.grants[grant.ProfileID][grant.FeatureID] = grant
	return nil
}

func (s *profileStore) AssignUser(_ context.Context, assignment domain.ProfileAssignment, licenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seatLimit != nil {
		if limit := s.seatLimit(licenseID); limit > 0 {
			seated := s.seatedLocked(licenseID)
			if _, ok := seated[assignment.UserID]; !ok && len(seated) >= limit {
				return repository.ErrLimitReached
			}
		}
	}
	if s.assignments[assignment.ProfileID] == nil {
		s.assignments[assignment.ProfileID] = make(map[string]time.Time)
	}
	s.assignments[assignment.ProfileID][assignment.UserID] = assignment.AssignedAt
	return nil
}

func (s *profileStore) UnassignUser(_ context.Context, profileID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[profileID][userID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.assignments[profileID], userID)
	return nil
}

func (s *profileStore) seatedLocked(licenseID string) map[string]struct{} {
	users := make(map[string]struct{})
	for profileID, assigned := range s.assignments {
		if s.profiles[profileID].LicenseID != licenseID {
			continue
		}
		for userID := range assigned {
			users[userID] = struct{}{}
		}
	}
	return users
}

func (s *profileStore) seated(licenseID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seatedLocked(licenseID))
}

// userStore is an in-memory port.UserRepository.
type userStore struct {
	mu      sync.Mutex
	users   map[string]domain.User
	touched []string
}

var _ port.UserRepository = (*userStore)(nil)

func newUserStore(users ...domain.User) *userStore {
	store := &userStore{users: make(map[string]domain.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (s *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *userStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	s.users[id] = user
	s.touched = append(s.touched, id)
	return nil
}

// tokenStore is an in-memory port.TokenRepository whose rotation is a compare-and-swap
// under a mutex, mirroring the conditional update of the SQL adapter.
type tokenStore struct {
	mu     sync.Mutex
	tokens map[string]domain.RefreshToken
}

var _ port.TokenRepository = (*tokenStore)(nil)

func newTokenStore() *tokenStore {
	return &tokenStore{tokens: make(map[string]domain.RefreshToken)}
}

func (s *tokenStore) CreateRefreshToken(_ context.Context, token domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = token
	return nil
}

func (s *tokenStore) GetRefreshTokenByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range s.tokens {
		if token.TokenHash == hash {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *tokenStore) RotateRefreshToken(_ context.Context, currentID string, usedAt time.Time, next domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tokens[currentID]
	if !ok || current.State(usedAt) != domain.RefreshTokenActive {
		return repository.ErrConflict
	}
	current.UsedAt = &usedAt
	current.ReplacedBy = &next.ID
	s.tokens[currentID] = current
	s.tokens[next.ID] = next
	return nil
}

func (s *tokenStore) RevokeRefreshTokensByFamily(_ context.Context, familyID string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	now := time.Now().UTC()
	for id, token := range s.tokens {
		if token.FamilyID != familyID {
			continue
		}
		if token.RevokedAt != nil {
			continue
		}
		token.RevokedAt = &now
		revoked++
		s.tokens[id] = token
	}
	return revoked, nil
}

func (s *tokenStore) all() []domain.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RefreshToken, 0, len(s.tokens))
	for _, token := range s.tokens {
		out = append(out, token)
	}
	return out
}

// licenseCacheStub is an in-memory port.LicenseCache with error injection.
type licenseCacheStub struct {
	mu       sync.Mutex
	entries  map[string]domain.License
	getErr   error
	deleted  []string
	getCalls int
}

var _ port.LicenseCache = (*licenseCacheStub)(nil)

func newLicenseCacheStub() *licenseCacheStub {
	return &licenseCacheStub{entries: make(map[string]domain.License)}
}

func (c *licenseCacheStub) GetLicense(_ context.Context, apiKey string) (*domain.License, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.getErr != nil {
		return nil, c.getErr
	}
	license, ok := c.entries[apiKey]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := cloneLicense(&license)
	return &copied, nil
}

func (c *licenseCacheStub) SetLicense(_ context.Context, apiKey string, license domain.License, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[apiKey] = license
	return nil
}

func (c *licenseCacheStub) DeleteLicense(_ context.Context, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, apiKey)
	c.deleted = append(c.deleted, apiKey)
	return nil
}

func (c *licenseCacheStub) lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getCalls
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu        sync.Mutex
	blocked   []domain.LicenseBlockedEvent
	unblocked []domain.LicenseUnblockedEvent
	rotated   []domain.CredentialRotatedEvent
	issued    []domain.SessionIssuedEvent
	replayed  []domain.RefreshTokenReplayedEvent
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) PublishLicenseBlocked(_ context.Context, event domain.LicenseBlockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = append(p.blocked, event)
	return nil
}

func (p *recordingPublisher) PublishLicenseUnblocked(_ context.Context, event domain.LicenseUnblockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unblocked = append(p.unblocked, event)
	return nil
}

func (p *recordingPublisher) PublishCredentialRotated(_ context.Context, event domain.CredentialRotatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotated = append(p.rotated, event)
	return nil
}

func (p *recordingPublisher) PublishSessionIssued(_ context.Context, event domain.SessionIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued = append(p.issued, event)
	return nil
}

func (p *recordingPublisher) PublishRefreshTokenReplayed(_ context.Context, event domain.RefreshTokenReplayedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replayed = append(p.replayed, event)
	return nil
}

// plainHasher stores passwords as "plain:<password>".
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(password, encoded string) (bool, error) {
	if len(encoded) < 6 || encoded[:6] != "plain:" {
		return false, errors.New("unexpected hash format")
	}
	return encoded[6:] == password, nil
}

// countingHasher is a plainHasher that counts verifications.
type countingHasher struct {
	plainHasher
	mu       sync.Mutex
	verifies int
}

func (h *countingHasher) Verify(password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.plainHasher.Verify(password, encoded)
}

func (h *countingHasher) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []domain.Decision
	lookups   []string
	replays   int
}

func (o *recordingObserver) ObserveDecision(decision domain.Decision) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, decision)
}

func (o *recordingObserver) ObserveCacheLookup(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups = append(o.lookups, result)
}

func (o *recordingObserver) ObserveRefreshReplay() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.replays++
}
