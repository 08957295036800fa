package domain

import "time"

// EntitlementSnapshot is the serialisable view of a user's effective permissions under one license.
type EntitlementSnapshot struct {
	LicenseID   string
	Modules     []string
	Permissions FeaturePermissionMap
	GeneratedAt time.Time
}

// Session bundles the tokens and the entitlement snapshot returned at login and refresh.
type Session struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  User
	LicenseID             string
	ClientID              string
	Entitlements          EntitlementSnapshot
}
