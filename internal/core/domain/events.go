package domain

import "time"

// LicenseBlockedEvent represents the payload for authz.license.blocked messages.
type LicenseBlockedEvent struct {
	EventID   string
	LicenseID string
	ClientID  string
	Reason    string
	BlockedBy string
	BlockedAt time.Time
}

// LicenseUnblockedEvent represents the payload for authz.license.unblocked messages.
type LicenseUnblockedEvent struct {
	EventID     string
	LicenseID   string
	ClientID    string
	UnblockedBy string
	UnblockedAt time.Time
}

// CredentialRotatedEvent represents the payload for authz.license.credential.rotated messages.
type CredentialRotatedEvent struct {
	EventID      string
	LicenseID    string
	ClientID     string
	CredentialID string
	RotatedBy    string
	RotatedAt    time.Time
}

// SessionIssuedEvent represents the payload for authz.session.issued messages.
type SessionIssuedEvent struct {
	EventID   string
	UserID    string
	LicenseID string
	ClientID  string
	Source    string
	IssuedAt  time.Time
}

// RefreshTokenReplayedEvent represents the payload for authz.session.refresh_replayed messages.
type RefreshTokenReplayedEvent struct {
	EventID       string
	UserID        string
	LicenseID     string
	FamilyID      string
	TokenID       string
	TokensRevoked int
	DetectedAt    time.Time
}
