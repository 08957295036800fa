package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/repository"
)

const (
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	refreshTokenBytes      = 32

	sessionSourceLogin   = "login"
	sessionSourceRefresh = "refresh"
)

// MembershipAggregator aggregates permissions and reports whether the user holds a profile
// under the license.
type MembershipAggregator interface {
	AggregateMembership(ctx context.Context, userID string, license domain.License) (domain.FeaturePermissionMap, bool, error)
}

// SessionIssuer authenticates users against a license and issues rotating sessions.
type SessionIssuer struct {
	cfg          *config.AppConfig
	resolver     LicenseResolver
	licenses     port.LicenseRepository
	users        port.UserRepository
	entitlements MembershipAggregator
	tokens       port.TokenRepository
	hasher       port.PasswordHasher
	jwt          *security.JWTManager
	events       port.EventPublisher
	replays      ReplayObserver
	logger       *zap.Logger
	now          func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// NewSessionIssuer constructs a SessionIssuer.
func NewSessionIssuer(
	cfg *config.AppConfig,
	resolver LicenseResolver,
	licenses port.LicenseRepository,
	users port.UserRepository,
	entitlements MembershipAggregator,
	tokens port.TokenRepository,
	hasher port.PasswordHasher,
	jwtManager *security.JWTManager,
	log *zap.Logger,
) *SessionIssuer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionIssuer{
		cfg:          cfg,
		resolver:     resolver,
		licenses:     licenses,
		users:        users,
		entitlements: entitlements,
		tokens:       tokens,
		hasher:       hasher,
		jwt:          jwtManager,
		replays:      nopObserver{},
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithEventPublisher attaches an event publisher for session and replay events.
func (s *SessionIssuer) WithEventPublisher(publisher port.EventPublisher) *SessionIssuer {
	s.events = publisher
	return s
}

// WithReplayObserver installs an observer notified of every detected refresh replay.
func (s *SessionIssuer) WithReplayObserver(observer ReplayObserver) *SessionIssuer {
	if observer != nil {
		s.replays = observer
	}
	return s
}

// verifyDecoy spends one password verification on a throwaway hash so an unknown email takes
// as long to reject as a wrong password.
func (s *SessionIssuer) verifyDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("decoy password hash could not be derived", zap.Error(err))
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(password, s.decoyHash)
	}
}

// WithClock overrides the issuer clock for deterministic tests.
func (s *SessionIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login verifies the user's credentials under the license selected by the API key and opens
// a new session. Every credential or association failure is reported as ErrInvalidCredentials.
func (s *SessionIssuer) Login(ctx context.Context, apiKey, email, password string, metadata map[string]any) (*domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	license, err := s.resolver.ResolveLicense(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if usable, reason := license.Usability(now); !usable {
		return nil, fmt.Errorf("%w: %s", ErrLicenseUnusable, reason)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.verifyDecoy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("password hash could not be verified",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	permissions, member, err := s.entitlements.AggregateMembership(ctx, user.ID, *license)
	if err != nil {
		return nil, err
	}
	if user.ClientID != license.ClientID && !member {
		logger.With(ctx, s.logger).Info("login rejected: user not associated with license",
			zap.String("user_id", user.ID),
			zap.String("license_id", license.ID),
		)
		return nil, ErrInvalidCredentials
	}

	raw, record, err := s.newRefreshToken(*user, *license, uuid.NewString(), now, metadata, sessionSourceLogin)
	if err != nil {
		return nil, err
	}
	session, err := s.buildSession(*user, *license, permissions, raw, record, now)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.publishIssued(ctx, session, sessionSourceLogin, now)

	return session, nil
}

// Refresh exchanges a refresh token for a new session with freshly computed entitlements.
// The presented token is consumed and its replacement recorded in one conditional write, so
// of several concurrent callers presenting the same token exactly one succeeds.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string, metadata map[string]any) (*domain.Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrRefreshTokenMissing
	}

	record, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now()
	switch record.State(now) {
	case domain.RefreshTokenConsumed:
		s.handleReplay(ctx, *record, now)
		return nil, ErrRefreshRejected
	case domain.RefreshTokenRevoked, domain.RefreshTokenExpired:
		return nil, ErrRefreshRejected
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrRefreshRejected
	}

	license, err := s.licenses.GetByID(ctx, record.LicenseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("lookup license: %w", err)
	}
	if usable, reason := license.Usability(now); !usable {
		return nil, fmt.Errorf("%w: license %s", ErrRefreshRejected, reason)
	}

	permissions, member, err := s.entitlements.AggregateMembership(ctx, user.ID, *license)
	if err != nil {
		return nil, err
	}
	if user.ClientID != license.ClientID && !member {
		return nil, ErrRefreshRejected
	}

	meta := metadataCopy(metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["rotated_from"] = record.ID

	raw, next, err := s.newRefreshToken(*user, *license, record.FamilyID, now, meta, sessionSourceRefresh)
	if err != nil {
		return nil, err
	}
	session, err := s.buildSession(*user, *license, permissions, raw, next, now)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RotateRefreshToken(ctx, record.ID, now, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			logger.With(ctx, s.logger).Info("refresh token rotation lost to a concurrent request",
				zap.String("token_id", record.ID),
				zap.String("family_id", record.FamilyID),
			)
			return nil, ErrRefreshRejected
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.publishIssued(ctx, session, sessionSourceRefresh, now)

	return session, nil
}

// Logout revokes every refresh token in the presented token's family. Unknown tokens are ignored.
func (s *SessionIssuer) Logout(ctx context.Context, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return ErrRefreshTokenMissing
	}

	record, err := s.tokens.GetRefreshTokenByHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}

	if _, err := s.tokens.RevokeRefreshTokensByFamily(ctx, record.FamilyID, "logout"); err != nil {
		return fmt.Errorf("revoke refresh token family: %w", err)
	}
	return nil
}

func (s *SessionIssuer) handleReplay(ctx context.Context, record domain.RefreshToken, now time.Time) {
	s.replays.ObserveRefreshReplay()
	revoked, err := s.tokens.RevokeRefreshTokensByFamily(ctx, record.FamilyID, "replay_detected")
	if err != nil {
		s.logger.Error("revoke refresh token family after replay failed",
			zap.String("family_id", record.FamilyID),
			zap.Error(err),
		)
	}

	logger.With(ctx, s.logger).Warn("refresh token replay detected",
		zap.String("token_id", record.ID),
		zap.String("family_id", record.FamilyID),
		zap.String("user_id", record.UserID),
		zap.Int("tokens_revoked", revoked),
	)

	if s.events == nil {
		return
	}
	event := domain.RefreshTokenReplayedEvent{
		EventID:       uuid.NewString(),
		UserID:        record.UserID,
		LicenseID:     record.LicenseID,
		FamilyID:      record.FamilyID,
		TokenID:       record.ID,
		TokensRevoked: revoked,
		DetectedAt:    now,
	}
	if err := s.events.PublishRefreshTokenReplayed(ctx, event); err != nil {
		s.logger.Warn("publish refresh replay event failed", zap.Error(err))
	}
}

func (s *SessionIssuer) newRefreshToken(user domain.User, license domain.License, familyID string, now time.Time, metadata map[string]any, source string) (string, domain.RefreshToken, error) {
	raw, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return "", domain.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	meta := metadataCopy(metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta["source"] = source

	return raw, domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		LicenseID: license.ID,
		FamilyID:  familyID,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTokenTTL()),
		Metadata:  meta,
	}, nil
}

func (s *SessionIssuer) buildSession(user domain.User, license domain.License, permissions domain.FeaturePermissionMap, rawRefresh string, refresh domain.RefreshToken, now time.Time) (*domain.Session, error) {
	claims, err := security.NewAccessTokenClaims(security.AccessTokenOptions{
		UserID:    user.ID,
		ClientID:  user.ClientID,
		LicenseID: license.ID,
		Issuer:    s.issuer(),
		Audience:  []string{s.issuer()},
		TTL:       s.accessTokenTTL(),
		IssuedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("build access token claims: %w", err)
	}

	accessToken, err := s.jwt.SignAccessToken(claims)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &domain.Session{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  claims.ExpiresAt.Time,
		RefreshToken:          rawRefresh,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		User:                  user.Sanitized(),
		LicenseID:             license.ID,
		ClientID:              license.ClientID,
		Entitlements:          NewSnapshot(license, permissions, now),
	}, nil
}

func (s *SessionIssuer) publishIssued(ctx context.Context, session *domain.Session, source string, now time.Time) {
	if s.events == nil {
		return
	}
	event := domain.SessionIssuedEvent{
		EventID:   uuid.NewString(),
		UserID:    session.User.ID,
		LicenseID: session.LicenseID,
		ClientID:  session.ClientID,
		Source:    source,
		IssuedAt:  now,
	}
	if err := s.events.PublishSessionIssued(ctx, event); err != nil {
		s.logger.Warn("publish session issued event failed", zap.Error(err))
	}
}

func (s *SessionIssuer) issuer() string {
	return issuerName(s.cfg)
}

func (s *SessionIssuer) accessTokenTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.AccessTokenTTL > 0 {
		return s.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (s *SessionIssuer) refreshTokenTTL() time.Duration {
	if s.cfg != nil && s.cfg.JWT.RefreshTokenTTL > 0 {
		return s.cfg.JWT.RefreshTokenTTL
	}
	return defaultRefreshTokenTTL
}

func metadataCopy(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
