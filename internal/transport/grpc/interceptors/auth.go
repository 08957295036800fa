package interceptors

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

const (
	// APIKeyMetadataKey carries the tenant credential.
	APIKeyMetadataKey = "x-api-key"
	// RequestIDMetadataKey carries the caller's correlation id.
	RequestIDMetadataKey = "x-request-id"

	authorizationKey = "authorization"
	bearerPrefix     = "bearer "
)

// TokenValidator exposes the access-token validation capability required by the auth interceptor.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*security.AccessTokenClaims, error)
}

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	// AllowMethods skip every check.
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor requires an API key on every call and validates a bearer token when one is
// sent. Service-to-service calls may omit the token and name the user in the request instead.
type AuthInterceptor struct {
	validator TokenValidator
	logger    *zap.Logger
	allow     map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(validator TokenValidator, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthInterceptor{validator: validator, logger: log, allow: allow}
}

// UnaryServerInterceptor returns the unary interceptor.
func (ai *AuthInterceptor) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		if requestID := firstValue(md, RequestIDMetadataKey); requestID != "" {
			ctx = context.WithValue(ctx, logger.RequestIDKey{}, requestID)
		}

		if _, ok := ai.allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		apiKey := firstValue(md, APIKeyMetadataKey)
		if apiKey == "" {
			ai.logger.Warn("gRPC call without api key", zap.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "api key required")
		}
		ctx = WithAPIKey(ctx, apiKey)

		raw := firstValue(md, authorizationKey)
		if raw == "" || ai.validator == nil {
			return handler(ctx, req)
		}

		token, err := bearerToken(raw)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		claims, err := ai.validator.ValidateToken(ctx, token)
		if err != nil {
			ai.logger.Warn("gRPC token validation failed", zap.String("method", info.FullMethod), zap.Error(err))
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken):
				return nil, status.Error(codes.Unauthenticated, "access token expired")
			case errors.Is(err, usecase.ErrInvalidAccessToken):
				return nil, status.Error(codes.Unauthenticated, "invalid access token")
			default:
				return nil, status.Error(codes.Unavailable, "failed to validate access token")
			}
		}

		return handler(WithClaims(ctx, claims), req)
	}
}

type claimsContextKey struct{}

type apiKeyContextKey struct{}

// WithClaims returns a derived context containing token claims.
func WithClaims(ctx context.Context, claims *security.AccessTokenClaims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts token claims from context when available.
func ClaimsFromContext(ctx context.Context) (*security.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*security.AccessTokenClaims)
	return claims, ok && claims != nil
}

// WithAPIKey stores the caller's API key on the context.
func WithAPIKey(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, apiKeyContextKey{}, apiKey)
}

// APIKeyFromContext returns the API key stored by the interceptor.
func APIKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(apiKeyContextKey{}).(string)
	return key
}

func firstValue(md metadata.MD, key string) string {
	for _, value := range md.Get(key) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func bearerToken(value string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(value), bearerPrefix) {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(value[len(bearerPrefix):])
	if token == "" {
		return "", errors.New("authorization token required")
	}
	return token, nil
}
