package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/middleware"
)

// DecisionService answers authorization questions for sibling back ends and clients.
type DecisionService interface {
	Authorize(ctx context.Context, apiKey, userID, featureKey string, action domain.Action) (domain.Decision, error)
	Entitlements(ctx context.Context, apiKey, userID string) (*domain.EntitlementSnapshot, domain.Decision, error)
}

// AuthorizationHandler exposes the decision engine over HTTP.
type AuthorizationHandler struct {
	decisions DecisionService
	logger    *zap.Logger
}

// NewAuthorizationHandler constructs AuthorizationHandler.
func NewAuthorizationHandler(decisions DecisionService, log *zap.Logger) *AuthorizationHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthorizationHandler{decisions: decisions, logger: log}
}

// Authorize godoc
// @Summary Decide whether a user may perform an action on a feature
// @Tags Authorization
// @Accept json
// @Produce json
// @Param X-Api-Key header string true "Tenant API key"
// @Param request body AuthorizeRequest true "Decision request"
// @Success 200 {object} AuthorizeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/authorize [post]
func (h *AuthorizationHandler) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, bindingMessage(err)))
		return
	}

	action, _ := domain.ParseAction(req.Action)
	decision, err := h.decisions.Authorize(c.Request.Context(), c.GetString(middleware.APIKeyKey),
		strings.TrimSpace(req.UserID), strings.TrimSpace(req.Feature), action)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, errServiceDegraded))
		return
	}

	c.JSON(http.StatusOK, AuthorizeResponse{Allowed: decision.Allowed})
}

// Entitlements returns the caller's current snapshot. Clients call it after a denial to pick up
// profile or license changes made since login.
func (h *AuthorizationHandler) Entitlements(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	snapshot, decision, err := h.decisions.Entitlements(c.Request.Context(), c.GetString(middleware.APIKeyKey), claims.UserID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, errServiceDegraded))
		return
	}
	if snapshot == nil || !decision.Allowed {
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "not authorized"))
		return
	}
	if snapshot.LicenseID != claims.LicenseID {
		h.logger.Warn("entitlements requested with a token from another license",
			zap.String("user_id", claims.UserID),
			zap.String("token_license_id", claims.LicenseID),
			zap.String("license_id", snapshot.LicenseID),
		)
		c.JSON(http.StatusForbidden, NewErrorResponse(c, "not authorized"))
		return
	}

	c.JSON(http.StatusOK, newEntitlementsResponse(snapshot))
}
