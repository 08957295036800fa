package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
)

// TokenVerifier validates access tokens issued by the SessionIssuer.
type TokenVerifier struct {
	cfg *config.AppConfig
	jwt *security.JWTManager
	now func() time.Time
}

// NewTokenVerifier constructs a TokenVerifier.
func NewTokenVerifier(cfg *config.AppConfig, jwtManager *security.JWTManager) *TokenVerifier {
	return &TokenVerifier{
		cfg: cfg,
		jwt: jwtManager,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the verifier clock for deterministic tests.
func (v *TokenVerifier) WithClock(clock func() time.Time) {
	if clock != nil {
		v.now = clock
	}
}

// ValidateToken performs offline validation of an access token and returns its claims.
func (v *TokenVerifier) ValidateToken(_ context.Context, token string) (*security.AccessTokenClaims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidAccessToken
	}

	issuer := issuerName(v.cfg)
	claims, err := v.jwt.ParseAccessToken(token, security.ParseOptions{
		Issuer:   issuer,
		Audience: issuer,
		Now:      v.now,
	})
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}

func issuerName(cfg *config.AppConfig) string {
	if cfg != nil {
		if name := strings.TrimSpace(cfg.App.Name); name != "" {
			return name
		}
	}
	return "license-authz"
}
