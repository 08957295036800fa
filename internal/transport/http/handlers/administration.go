package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

// LicenseAdministration changes license state and credentials.
type LicenseAdministration interface {
	Get(ctx context.Context, licenseID string) (*domain.License, error)
	Block(ctx context.Context, licenseID, reason, actor string) (*domain.License, error)
	Unblock(ctx context.Context, licenseID, actor string) (*domain.License, error)
	RotateAPIKey(ctx context.Context, licenseID, actor string) (*domain.Credential, error)
}

// ProfileAdministration manages profiles, their grants and their users.
type ProfileAdministration interface {
	CreateProfile(ctx context.Context, licenseID, name string) (*domain.Profile, error)
	SetGrant(ctx context.Context, profileID, featureKey string, flags domain.PermissionFlags) (*domain.ProfileFeatureGrant, error)
	AssignUser(ctx context.Context, profileID, userID string) (*domain.ProfileAssignment, error)
	UnassignUser(ctx context.Context, profileID, userID string) error
}

var adminErrors = errorMapping{
	fallbackStatus:  http.StatusInternalServerError,
	fallbackMessage: "administration request failed",
	cases: []ErrorCase{
		{Err: usecase.ErrLicenseNotFound, Status: http.StatusNotFound, Message: "license not found"},
		{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "profile not found"},
		{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		{Err: usecase.ErrBlockReasonRequired, Status: http.StatusBadRequest, Message: "block reason is required"},
		{Err: usecase.ErrProfileNameRequired, Status: http.StatusBadRequest, Message: "profile name is required"},
		{Err: usecase.ErrFeatureNotLicensed, Status: http.StatusUnprocessableEntity, Message: "feature not granted by license"},
		{Err: usecase.ErrProfileInactive, Status: http.StatusConflict, Message: "profile is not active"},
		{Err: usecase.ErrSeatLimitReached, Status: http.StatusConflict, Message: "license seat limit reached"},
	},
}

func respondAdminError(c *gin.Context, err error) {
	adminErrors.respond(c, err)
}

// AdminHandler exposes license and profile administration to operators.
type AdminHandler struct {
	licenses LicenseAdministration
	profiles ProfileAdministration
}

func NewAdminHandler(licenses LicenseAdministration, profiles ProfileAdministration) *AdminHandler {
	return &AdminHandler{licenses: licenses, profiles: profiles}
}

// RegisterRoutes binds the administration routes on an already guarded group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/licenses/:id", h.getLicense)
	r.POST("/licenses/:id/block", h.blockLicense)
	r.POST("/licenses/:id/unblock", h.unblockLicense)
	r.POST("/licenses/:id/api-key", h.rotateAPIKey)

	r.POST("/profiles", h.createProfile)
	r.PUT("/profiles/:id/features/:featureKey", h.setGrant)
	r.PUT("/profiles/:id/users/:userId", h.assignUser)
	r.DELETE("/profiles/:id/users/:userId", h.unassignUser)
}

func (h *AdminHandler) getLicense(c *gin.Context) {
	license, err := h.licenses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLicenseResponse(license))
}

func (h *AdminHandler) blockLicense(c *gin.Context) {
	var req BlockLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, bindingMessage(err)))
		return
	}

	license, err := h.licenses.Block(c.Request.Context(), c.Param("id"), req.Reason, req.Actor)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLicenseResponse(license))
}

func (h *AdminHandler) unblockLicense(c *gin.Context) {
	license, err := h.licenses.Unblock(c.Request.Context(), c.Param("id"), optionalActor(c))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, newLicenseResponse(license))
}

func (h *AdminHandler) rotateAPIKey(c *gin.Context) {
	credential, err := h.licenses.RotateAPIKey(c.Request.Context(), c.Param("id"), optionalActor(c))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, CredentialResponse{
		LicenseID: credential.LicenseID,
		APIKey:    credential.Key,
		CreatedAt: credential.CreatedAt,
	})
}

func (h *AdminHandler) createProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, bindingMessage(err)))
		return
	}

	profile, err := h.profiles.CreateProfile(c.Request.Context(), req.LicenseID, req.Name)
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProfileResponse(profile))
}

func (h *AdminHandler) setGrant(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, bindingMessage(err)))
		return
	}

	grant, err := h.profiles.SetGrant(c.Request.Context(), c.Param("id"), c.Param("featureKey"), req.Flags())
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, GrantResponse{
		ProfileID:  grant.ProfileID,
		FeatureKey: grant.FeatureKey,
		Flags:      grant.Flags,
		Mask:       grant.Flags.Mask(),
	})
}

func (h *AdminHandler) assignUser(c *gin.Context) {
	assignment, err := h.profiles.AssignUser(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		respondAdminError(c, err)
		return
	}
	c.JSON(http.StatusOK, AssignmentResponse{
		ProfileID:  assignment.ProfileID,
		UserID:     assignment.UserID,
		AssignedAt: assignment.AssignedAt,
	})
}

func (h *AdminHandler) unassignUser(c *gin.Context) {
	if err := h.profiles.UnassignUser(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		respondAdminError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// optionalActor reads {"actor": "..."} when a body is present. A missing body is not an error.
func optionalActor(c *gin.Context) string {
	if c.Request.ContentLength == 0 {
		return ""
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	return req.Actor
}
