package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrKeyIDMissing indicates no kid is associated with the supplied key.
	ErrKeyIDMissing = errors.New("jwt: missing key identifier")
	// ErrKeyNotRegistered indicates a supplied kid is unknown to the JWT manager.
	ErrKeyNotRegistered = errors.New("jwt: key not registered")
	// ErrTokenInvalid indicates the token is malformed, unsigned by a known key or fails claim checks.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates the token is well formed but past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
)

const defaultAccessTokenTTL = 15 * time.Minute

// JWTManager signs access tokens with the active key and publishes verification keys as a JWKS.
type JWTManager struct {
	keys       KeyProvider
	signingKID string
	mu         sync.RWMutex
	publicKeys map[string]*rsa.PublicKey
}

// NewJWTManager constructs a JWTManager signing with the key identified by signingKID.
func NewJWTManager(provider KeyProvider, signingKID string) *JWTManager {
	mgr := &JWTManager{
		keys:       provider,
		signingKID: strings.TrimSpace(signingKID),
		publicKeys: make(map[string]*rsa.PublicKey),
	}
	if provider != nil {
		for kid, key := range provider.ListVerificationKeys() {
			_ = mgr.RegisterPublicKey(kid, key)
		}
	}
	return mgr
}

// SigningKID returns the kid stamped on issued tokens.
func (m *JWTManager) SigningKID() string {
	return m.signingKID
}

// RegisterPublicKey associates a kid with a public key for JWKS publication and future lookup.
func (m *JWTManager) RegisterPublicKey(kid string, key *rsa.PublicKey) error {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return ErrKeyIDMissing
	}
	if key == nil {
		return fmt.Errorf("jwt: public key for %s is nil", kid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicKeys[kid] = key
	return nil
}

// GetVerificationKey retrieves a public key by kid.
func (m *JWTManager) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, ErrKeyIDMissing
	}

	m.mu.RLock()
	key, ok := m.publicKeys[kid]
	m.mu.RUnlock()
	if ok {
		return key, nil
	}

	if m.keys != nil {
		fetched, err := m.keys.GetVerificationKey(kid)
		if err == nil {
			_ = m.RegisterPublicKey(kid, fetched)
			return fetched, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotRegistered, kid)
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS renders the registered public keys as a JSON Web Key Set, ordered by kid so the
// document is stable across calls.
func (m *JWTManager) JWKS() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kids := make([]string, 0, len(m.publicKeys))
	for kid := range m.publicKeys {
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	set := struct {
		Keys []jsonWebKey `json:"keys"`
	}{Keys: make([]jsonWebKey, 0, len(kids))}
	for _, kid := range kids {
		key := m.publicKeys[kid]
		set.Keys = append(set.Keys, jsonWebKey{
			Kty: "RSA",
			Use: "sig",
			Alg: jwt.SigningMethodRS256.Alg(),
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	return json.Marshal(set)
}

// AccessTokenClaims carries the caller identity and the license the session was opened under.
type AccessTokenClaims struct {
	UserID    string `json:"uid"`
	ClientID  string `json:"cid"`
	LicenseID string `json:"lid"`
	jwt.RegisteredClaims
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	UserID    string
	ClientID  string
	LicenseID string
	Issuer    string
	Audience  []string
	TTL       time.Duration
	IssuedAt  time.Time
	JTI       string
}

// NewAccessTokenClaims constructs standardized access token claims.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, fmt.Errorf("jwt: user id is required")
	}
	licenseID := strings.TrimSpace(opts.LicenseID)
	if licenseID == "" {
		return nil, fmt.Errorf("jwt: license id is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	jti := strings.TrimSpace(opts.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	return &AccessTokenClaims{
		UserID:    userID,
		ClientID:  strings.TrimSpace(opts.ClientID),
		LicenseID: licenseID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			Audience:  opts.Audience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        jti,
		},
	}, nil
}

// SignAccessToken signs the provided claims using the active signing key and kid.
func (m *JWTManager) SignAccessToken(claims *AccessTokenClaims) (string, error) {
	if claims == nil {
		return "", fmt.Errorf("jwt: access token claims required")
	}
	if m.signingKID == "" {
		return "", ErrKeyIDMissing
	}
	if m.keys == nil {
		return "", fmt.Errorf("jwt: key provider not configured")
	}

	signingKey, err := m.keys.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("jwt: get signing key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.signingKID

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// ParseOptions narrows access token validation.
type ParseOptions struct {
	Issuer   string
	Audience string
	Now      func() time.Time
}

// ParseAccessToken verifies the signature and registered claims of an RS256 access token.
func (m *JWTManager) ParseAccessToken(raw string, opts ParseOptions) (*AccessTokenClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if opts.Now != nil {
		parserOptions = append(parserOptions, jwt.WithTimeFunc(opts.Now))
	}
	if issuer := strings.TrimSpace(opts.Issuer); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(opts.Audience); audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(audience))
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return m.GetVerificationKey(kid)
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.LicenseID) == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
