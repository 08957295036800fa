package domain

import "time"

// RefreshToken is a persisted, single-use refresh token bound to a user and a license.
// Only the hash of the raw value is stored. Tokens issued by successive
// rotations share a FamilyID.
type RefreshToken struct {
	ID         string
	UserID     string
	LicenseID  string
	FamilyID   string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	Metadata   map[string]any
}

// RefreshTokenState is the lifecycle position of a refresh token at a given instant.
type RefreshTokenState int

const (
	RefreshTokenActive RefreshTokenState = iota
	// RefreshTokenConsumed means the token was already rotated; presenting it again is a replay.
	RefreshTokenConsumed
	RefreshTokenRevoked
	RefreshTokenExpired
)

func (s RefreshTokenState) String() string {
	switch s {
	case RefreshTokenActive:
		return "active"
	case RefreshTokenConsumed:
		return "consumed"
	case RefreshTokenRevoked:
		return "revoked"
	case RefreshTokenExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// State classifies the token at the given instant. Consumption is checked
// first so that replays of rotated tokens are always detectable.
func (t RefreshToken) State(at time.Time) RefreshTokenState {
	switch {
	case t.UsedAt != nil:
		return RefreshTokenConsumed
	case t.RevokedAt != nil:
		return RefreshTokenRevoked
	case !at.Before(t.ExpiresAt):
		return RefreshTokenExpired
	default:
		return RefreshTokenActive
	}
}
