package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/middleware"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

const (
	errNoRefreshToken   = "no_refresh_token"
	errRefreshRejected  = "refresh_rejected"
	errLoginFailed      = "invalid credentials"
	errServiceDegraded  = "service temporarily unavailable"
	refreshTokenPathKey = "refreshToken"
)

// SessionService issues, rotates and ends sessions.
type SessionService interface {
	Login(ctx context.Context, apiKey, email, password string, metadata map[string]any) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string, metadata map[string]any) (*domain.Session, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Login failures share one message so callers cannot tell an unknown email from a wrong
// password, an unknown key or a blocked license.
var loginErrors = errorMapping{
	cases: []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: errLoginFailed},
		{Err: usecase.ErrNoSuchTenant, Status: http.StatusUnauthorized, Message: errLoginFailed},
		{Err: usecase.ErrLicenseUnusable, Status: http.StatusUnauthorized, Message: errLoginFailed},
	},
	fallbackStatus:  http.StatusServiceUnavailable,
	fallbackMessage: errServiceDegraded,
}

var refreshErrors = errorMapping{
	cases: []ErrorCase{
		{Err: usecase.ErrRefreshTokenMissing, Status: http.StatusBadRequest, Message: errNoRefreshToken},
		{Err: usecase.ErrRefreshRejected, Status: http.StatusUnauthorized, Message: errRefreshRejected},
	},
	fallbackStatus:  http.StatusServiceUnavailable,
	fallbackMessage: errServiceDegraded,
}

// AuthHandler exposes the session endpoints.
type AuthHandler struct {
	sessions SessionService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(sessions SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// RegisterRoutes binds the session routes. The extra chains run ahead of the login and
// refresh handlers respectively.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, login, refresh []gin.HandlerFunc) {
	loginChain := append([]gin.HandlerFunc{middleware.RequireAPIKey()}, login...)
	r.POST("/login", append(loginChain, h.login)...)

	refreshChain := append(append([]gin.HandlerFunc{}, refresh...), h.refresh)
	r.POST("/refresh", refreshChain...)
	r.POST("/refresh/:"+refreshTokenPathKey, refreshChain...)
	r.POST("/logout", h.logout)
}

// Login godoc
// @Summary Open a session under the license selected by X-Api-Key
// @Tags Authentication
// @Accept json
// @Produce json
// @Param X-Api-Key header string true "Tenant API key"
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, bindingMessage(err)))
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), c.GetString(middleware.APIKeyKey),
		strings.TrimSpace(req.Email), req.Password, requestMetadata(c))
	if err != nil {
		loginErrors.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// Refresh godoc
// @Summary Rotate a refresh token
// @Description The token is read from the path when present, otherwise from the body.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
// @Router /api/v1/auth/refresh/{refreshToken} [post]
func (h *AuthHandler) refresh(c *gin.Context) {
	session, err := h.sessions.Refresh(c.Request.Context(), refreshTokenFromRequest(c), requestMetadata(c))
	if err != nil {
		refreshErrors.respond(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(session))
}

// logout revokes the refresh token family. Unknown tokens still answer 204.
func (h *AuthHandler) logout(c *gin.Context) {
	err := h.sessions.Logout(c.Request.Context(), refreshTokenFromRequest(c))
	if err != nil {
		refreshErrors.respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func refreshTokenFromRequest(c *gin.Context) string {
	if token := strings.TrimSpace(c.Param(refreshTokenPathKey)); token != "" {
		return token
	}

	var req RefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return ""
		}
	}
	return strings.TrimSpace(req.RefreshToken)
}

func requestMetadata(c *gin.Context) map[string]any {
	metadata := map[string]any{
		"ip": logger.MaskIP(c.ClientIP()),
	}
	if ua := c.Request.UserAgent(); ua != "" {
		metadata["user_agent"] = ua
	}
	if requestID := logger.RequestIDFromContext(c.Request.Context()); requestID != "" {
		metadata["request_id"] = requestID
	}
	return metadata
}
