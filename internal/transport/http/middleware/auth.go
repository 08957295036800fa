package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

const (
	// APIKeyHeader carries the tenant credential on every protected request.
	APIKeyHeader = "X-Api-Key"
	// AdminTokenHeader carries the operator token for administration routes.
	AdminTokenHeader = "X-Admin-Token"

	notAuthorizedMessage = "not authorized"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// AccessTokenValidator verifies bearer tokens offline.
type AccessTokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*security.AccessTokenClaims, error)
}

// FeatureAuthorizer decides whether a user may perform an action on a feature under the
// license the API key resolves to.
type FeatureAuthorizer interface {
	Authorize(ctx context.Context, apiKey, userID, featureKey string, action domain.Action) (domain.Decision, error)
}

func apiKeyFromRequest(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(APIKeyHeader))
}

// RequireAPIKey rejects requests without a tenant credential. Resolution happens later, in the
// guard or the use case, so an unknown key is reported the same way as a denied action.
func RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := apiKeyFromRequest(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "missing api key"))
			return
		}
		c.Set(APIKeyKey, key)
		c.Next()
	}
}

// RequireAuth validates the bearer access token and stores its claims on the context.
func RequireAuth(validator AccessTokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "access token expired"))
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid access token"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(LicenseIDKey, claims.LicenseID)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

// RequireFeature guards a route with one feature/action pair. It must run after RequireAPIKey
// and RequireAuth. Denials answer 403 with a generic message; the reason is only logged.
// Infrastructure failures answer 503 and never turn into a denial.
func RequireFeature(authorizer FeatureAuthorizer, log *zap.Logger, featureKey string, action domain.Action) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if !action.Valid() {
		panic("middleware: RequireFeature called with unknown action " + string(action))
	}

	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}

		decision, err := authorizer.Authorize(c.Request.Context(), c.GetString(APIKeyKey), claims.UserID, featureKey, action)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, newErrorResponse(c, "authorization temporarily unavailable"))
			return
		}

		if decision.Allowed && decision.LicenseID != claims.LicenseID {
			log.Warn("access token bound to another license",
				zap.String("user_id", claims.UserID),
				zap.String("token_license_id", claims.LicenseID),
				zap.String("license_id", decision.LicenseID),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, notAuthorizedMessage))
			return
		}

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, notAuthorizedMessage))
			return
		}

		c.Next()
	}
}

// RequireAdminToken protects administration routes with a shared operator token.
// An empty configured token disables the routes.
func RequireAdminToken(expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)

	return func(c *gin.Context) {
		if expected == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "administration disabled"))
			return
		}

		presented := strings.TrimSpace(c.GetHeader(AdminTokenHeader))
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "invalid admin token"))
			return
		}

		c.Next()
	}
}

// GetClaims returns the access token claims stored by RequireAuth.
func GetClaims(c *gin.Context) (*security.AccessTokenClaims, bool) {
	value, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.AccessTokenClaims)
	return claims, ok && claims != nil
}

// GetAuthenticatedUserID retrieves the user ID from context (helper for handlers)
func GetAuthenticatedUserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserIDKey)
	return id, id != ""
}
