package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/middleware"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// LoginRequest is the body of POST /api/v1/auth/login. The license comes from X-Api-Key.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token in the body. It is optional so the handler can
// answer no_refresh_token itself.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UserPayload is the user block of a session response.
type UserPayload struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	ClientID  string `json:"clientId"`
}

// LicensePayload is the entitlement snapshot returned with a session. Permissions are
// bitmasks: view=1, create=2, modify=4, delete=8, print=16.
type LicensePayload struct {
	ID          string         `json:"id"`
	Permissions map[string]int `json:"permissions"`
	Modules     []string       `json:"modules"`
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	Token              string         `json:"token"`
	TokenExpiry        time.Time      `json:"tokenExpiry"`
	RefreshToken       string         `json:"refreshToken"`
	RefreshTokenExpiry time.Time      `json:"refreshTokenExpiry"`
	User               UserPayload    `json:"user"`
	License            LicensePayload `json:"license"`
}

// EntitlementsResponse is returned by GET /api/v1/me/entitlements.
type EntitlementsResponse struct {
	LicenseID   string         `json:"licenseId"`
	Permissions map[string]int `json:"permissions"`
	Modules     []string       `json:"modules"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// AuthorizeRequest asks whether a user may perform an action on a feature under the license
// selected by X-Api-Key.
type AuthorizeRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Feature string `json:"feature" binding:"required"`
	Action  string `json:"action" binding:"required,permission_action"`
}

// AuthorizeResponse carries no deny reason.
type AuthorizeResponse struct {
	Allowed bool `json:"allowed"`
}

// BlockLicenseRequest is the body of the license block route.
type BlockLicenseRequest struct {
	Reason string `json:"reason" binding:"required"`
	Actor  string `json:"actor"`
}

// ActorRequest identifies the operator behind an administrative change.
type ActorRequest struct {
	Actor string `json:"actor"`
}

// LicenseResponse is the administrative view of a license.
type LicenseResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ClientID    string     `json:"clientId"`
	ValidFrom   time.Time  `json:"validFrom"`
	ValidUntil  time.Time  `json:"validUntil"`
	IsActive    bool       `json:"isActive"`
	Blocked     bool       `json:"blocked"`
	BlockReason *string    `json:"blockReason,omitempty"`
	BlockedAt   *time.Time `json:"blockedAt,omitempty"`
	MaxUsers    int        `json:"maxUsers"`
	Modules     []string   `json:"modules"`
}

// CredentialResponse returns a freshly rotated API key. This is the only time the raw key
// leaves the service.
type CredentialResponse struct {
	LicenseID string    `json:"licenseId"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateProfileRequest is the body of the profile creation route.
type CreateProfileRequest struct {
	LicenseID string `json:"licenseId" binding:"required"`
	Name      string `json:"name" binding:"required,max=120"`
}

// ProfileResponse is the administrative view of a profile.
type ProfileResponse struct {
	ID        string    `json:"id"`
	LicenseID string    `json:"licenseId"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// GrantRequest sets the five flags a profile holds for one feature. Omitted flags are granted.
type GrantRequest struct {
	View   *bool `json:"view"`
	Create *bool `json:"create"`
	Modify *bool `json:"modify"`
	Delete *bool `json:"delete"`
	Print  *bool `json:"print"`
}

// Flags resolves the request against the all-granted default.
func (r GrantRequest) Flags() domain.PermissionFlags {
	flags := domain.AllFlags()
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&flags.View, r.View)
	set(&flags.Create, r.Create)
	set(&flags.Modify, r.Modify)
	set(&flags.Delete, r.Delete)
	set(&flags.Print, r.Print)
	return flags
}

// GrantResponse echoes the stored grant.
type GrantResponse struct {
	ProfileID  string                 `json:"profileId"`
	FeatureKey string                 `json:"featureKey"`
	Flags      domain.PermissionFlags `json:"flags"`
	Mask       int                    `json:"mask"`
}

// AssignmentResponse echoes a profile assignment.
type AssignmentResponse struct {
	ProfileID  string    `json:"profileId"`
	UserID     string    `json:"userId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports each dependency checked for readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func newSessionResponse(session *domain.Session) SessionResponse {
	user := session.User
	return SessionResponse{
		Token:              session.AccessToken,
		TokenExpiry:        session.AccessTokenExpiresAt,
		RefreshToken:       session.RefreshToken,
		RefreshTokenExpiry: session.RefreshTokenExpiresAt,
		User: UserPayload{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Email:     user.Email,
			ClientID:  user.ClientID,
		},
		License: LicensePayload{
			ID:          session.LicenseID,
			Permissions: session.Entitlements.Permissions.Masks(),
			Modules:     nonNilStrings(session.Entitlements.Modules),
		},
	}
}

func newEntitlementsResponse(snapshot *domain.EntitlementSnapshot) EntitlementsResponse {
	return EntitlementsResponse{
		LicenseID:   snapshot.LicenseID,
		Permissions: snapshot.Permissions.Masks(),
		Modules:     nonNilStrings(snapshot.Modules),
		GeneratedAt: snapshot.GeneratedAt,
	}
}

func newLicenseResponse(license *domain.License) LicenseResponse {
	return LicenseResponse{
		ID:          license.ID,
		Name:        license.Name,
		ClientID:    license.ClientID,
		ValidFrom:   license.ValidFrom,
		ValidUntil:  license.ValidUntil,
		IsActive:    license.IsActive,
		Blocked:     license.Blocked,
		BlockReason: license.BlockReason,
		BlockedAt:   license.BlockedAt,
		MaxUsers:    license.MaxUsers,
		Modules:     nonNilStrings(license.ModuleKeys()),
	}
}

func newProfileResponse(profile *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        profile.ID,
		LicenseID: profile.LicenseID,
		Name:      profile.Name,
		IsActive:  profile.IsActive,
		CreatedAt: profile.CreatedAt,
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
