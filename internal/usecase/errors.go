package usecase

import "errors"

var (
	// ErrNoSuchTenant indicates the API key does not resolve to an active credential.
	ErrNoSuchTenant = errors.New("no such tenant")
	// ErrLicenseUnusable indicates the resolved license is blocked, inactive or outside its validity window.
	ErrLicenseUnusable = errors.New("license unusable")
	// ErrInvalidCredentials covers every login failure cause with one error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshTokenMissing indicates no refresh token was supplied.
	ErrRefreshTokenMissing = errors.New("refresh token missing")
	// ErrRefreshRejected indicates the refresh token is unknown, expired, revoked or already consumed.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrInvalidAccessToken indicates the access token is malformed or its signature is invalid.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrLicenseNotFound indicates the license id is unknown.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrBlockReasonRequired indicates a block was requested without a reason.
	ErrBlockReasonRequired = errors.New("block reason is required")
	// ErrProfileNotFound indicates the profile id is unknown.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileNameRequired indicates a profile was created without a name.
	ErrProfileNameRequired = errors.New("profile name is required")
	// ErrProfileInactive indicates the profile cannot be edited or assigned while inactive.
	ErrProfileInactive = errors.New("profile is not active")
	// ErrFeatureNotLicensed indicates the feature is not part of the license's granted set.
	ErrFeatureNotLicensed = errors.New("feature not granted by license")
	// ErrSeatLimitReached indicates the license has no free seat for another user.
	ErrSeatLimitReached = errors.New("license seat limit reached")
	// ErrUserNotFound indicates the user id is unknown.
	ErrUserNotFound = errors.New("user not found")
)
