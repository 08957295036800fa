package domain

import "time"

// Profile is a role scoped to exactly one license.
type Profile struct {
	ID        string
	LicenseID string
	Name      string
	IsActive  bool
	CreatedAt time.Time
}

// ProfileFeatureGrant carries the five flags a profile holds for one feature.
type ProfileFeatureGrant struct {
	ProfileID  string
	FeatureID  string
	FeatureKey string
	Flags      PermissionFlags
}

// ProfileAssignment links a user to a profile.
type ProfileAssignment struct {
	ProfileID  string
	UserID     string
	AssignedAt time.Time
}

// ProfileMembership is a profile a user holds together with the profile's grants.
type ProfileMembership struct {
	Profile Profile
	Grants  []ProfileFeatureGrant
}
