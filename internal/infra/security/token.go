package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	// APIKeyPrefix marks generated license credentials.
	APIKeyPrefix = "flk_"

	apiKeyEntropyBytes = 32
)

var errNonPositiveLength = errors.New("token length must be positive")

// GenerateSecureToken draws n random bytes and encodes them URL-safe without padding.
func GenerateSecureToken(n int) (string, error) {
	if n <= 0 {
		return "", errNonPositiveLength
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateAPIKey mints a license credential of the form flk_<43 url-safe chars>.
func GenerateAPIKey() (string, error) {
	suffix, err := GenerateSecureToken(apiKeyEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return APIKeyPrefix + suffix, nil
}

// HashToken returns the hex SHA-256 digest stored in place of opaque secrets.
func HashToken(value string) string {
	digest := sha256.Sum256([]byte(value))
	return hex.EncodeToString(digest[:])
}
