package interceptors

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

type stubTokenValidator struct {
	claims *security.AccessTokenClaims
	err    error
	calls  int
}

func (s *stubTokenValidator) ValidateToken(context.Context, string) (*security.AccessTokenClaims, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

var authorizeInfo = &grpc.UnaryServerInfo{FullMethod: "/authz.v1.AuthorizationService/Authorize"}

func mustNotRun(t *testing.T) grpc.UnaryHandler {
	return func(context.Context, any) (any, error) {
		t.Fatal("handler should not be invoked")
		return nil, nil
	}
}

func TestAuthInterceptorStoresAPIKeyAndClaims(t *testing.T) {
	validator := &stubTokenValidator{claims: &security.AccessTokenClaims{UserID: "user-1", LicenseID: "lic-1"}}
	interceptor := NewAuthInterceptor(validator, AuthOptions{Logger: zaptest.NewLogger(t)}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		"x-api-key", "flk_frotas",
		"authorization", "Bearer token-value",
		"x-request-id", "req-42",
	))

	_, err := interceptor(ctx, struct{}{}, authorizeInfo, func(ctx context.Context, _ any) (any, error) {
		if APIKeyFromContext(ctx) != "flk_frotas" {
			t.Fatalf("api key missing from context")
		}
		claims, ok := ClaimsFromContext(ctx)
		if !ok || claims.UserID != "user-1" {
			t.Fatalf("claims missing from context")
		}
		if logger.RequestIDFromContext(ctx) != "req-42" {
			t.Fatalf("request id missing from context")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthInterceptorAllowsServiceCallsWithoutToken(t *testing.T) {
	validator := &stubTokenValidator{err: errors.New("should not be called")}
	interceptor := NewAuthInterceptor(validator, AuthOptions{}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "flk_frotas"))
	if _, err := interceptor(ctx, struct{}{}, authorizeInfo, func(ctx context.Context, _ any) (any, error) {
		if _, ok := ClaimsFromContext(ctx); ok {
			t.Fatal("expected no claims")
		}
		return "ok", nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validator.calls != 0 {
		t.Fatalf("expected validator not to be called, got %d calls", validator.calls)
	}
}

func TestAuthInterceptorRejectsMissingAPIKey(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubTokenValidator{}, AuthOptions{}).UnaryServerInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token"))
	if _, err := interceptor(ctx, struct{}{}, authorizeInfo, mustNotRun(t)); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated error, got %v", err)
	}
}

func TestAuthInterceptorPassesThroughAllowedMethods(t *testing.T) {
	interceptor := NewAuthInterceptor(&stubTokenValidator{}, AuthOptions{
		AllowMethods: []string{"/authz.v1.AuthorizationService/JWKS"},
	}).UnaryServerInterceptor()

	info := &grpc.UnaryServerInfo{FullMethod: "/authz.v1.AuthorizationService/JWKS"}
	if _, err := interceptor(context.Background(), struct{}{}, info, func(context.Context, any) (any, error) {
		return "keys", nil
	}); err != nil {
		t.Fatalf("expected allowed method to succeed, got %v", err)
	}
}

func TestAuthInterceptorMapsTokenErrors(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		err      error
		wantCode codes.Code
	}{
		{name: "expired", header: "Bearer token", err: usecase.ErrExpiredAccessToken, wantCode: codes.Unauthenticated},
		{name: "malformed header", header: "Basic abc", wantCode: codes.Unauthenticated},
		{name: "validator failure", header: "Bearer token", err: errors.New("key store down"), wantCode: codes.Unavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			interceptor := NewAuthInterceptor(&stubTokenValidator{err: tc.err}, AuthOptions{}).UnaryServerInterceptor()
			ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(
				"x-api-key", "flk_frotas",
				"authorization", tc.header,
			))

			if _, err := interceptor(ctx, struct{}{}, authorizeInfo, mustNotRun(t)); status.Code(err) != tc.wantCode {
				t.Fatalf("expected %s, got %v", tc.wantCode, err)
			}
		})
	}
}
