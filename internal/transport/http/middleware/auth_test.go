package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

type fakeValidator struct {
	claims *security.AccessTokenClaims
	err    error
	tokens []string
}

func (f *fakeValidator) ValidateToken(_ context.Context, token string) (*security.AccessTokenClaims, error) {
	f.tokens = append(f.tokens, token)
	return f.claims, f.err
}

type authorizeCall struct {
	apiKey, userID, feature string
	action                  domain.Action
}

type fakeAuthorizer struct {
	decision domain.Decision
	err      error
	calls    []authorizeCall
}

func (f *fakeAuthorizer) Authorize(_ context.Context, apiKey, userID, featureKey string, action domain.Action) (domain.Decision, error) {
	f.calls = append(f.calls, authorizeCall{apiKey, userID, featureKey, action})
	return f.decision, f.err
}

func guardedRouter(t *testing.T, validator AccessTokenValidator, authorizer FeatureAuthorizer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(EnrichContext())
	router.GET("/api/v1/funcionarios",
		RequireAPIKey(),
		RequireAuth(validator),
		RequireFeature(authorizer, zaptest.NewLogger(t), "funcionarios", domain.ActionView),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return router
}

func guardedRequest(apiKey, bearer string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/funcionarios", nil)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	return req
}

func sessionClaims() *security.AccessTokenClaims {
	return &security.AccessTokenClaims{UserID: "user-1", ClientID: "client-1", LicenseID: "lic-1"}
}

func TestRequireFeatureAllows(t *testing.T) {
	authorizer := &fakeAuthorizer{decision: domain.Decision{Allowed: true, LicenseID: "lic-1"}}
	validator := &fakeValidator{claims: sessionClaims()}
	router := guardedRouter(t, validator, authorizer)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, guardedRequest("flk_frotas", "Bearer access-token"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(validator.tokens) != 1 || validator.tokens[0] != "access-token" {
		t.Fatalf("unexpected validated tokens %v", validator.tokens)
	}
	want := authorizeCall{"flk_frotas", "user-1", "funcionarios", domain.ActionView}
	if len(authorizer.calls) != 1 || authorizer.calls[0] != want {
		t.Fatalf("unexpected authorize calls %+v", authorizer.calls)
	}
}

func TestRequireFeatureResponses(t *testing.T) {
	cases := []struct {
		name       string
		apiKey     string
		bearer     string
		validator  *fakeValidator
		authorizer *fakeAuthorizer
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing api key",
			bearer:     "Bearer access-token",
			validator:  &fakeValidator{claims: sessionClaims()},
			authorizer: &fakeAuthorizer{},
			wantStatus: http.StatusUnauthorized,
			wantError:  "missing api key",
		},
		{
			name:       "malformed authorization header",
			apiKey:     "flk_frotas",
			bearer:     "Token access-token",
			validator:  &fakeValidator{claims: sessionClaims()},
			authorizer: &fakeAuthorizer{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired access token",
			apiKey:     "flk_frotas",
			bearer:     "Bearer stale",
			validator:  &fakeValidator{err: usecase.ErrExpiredAccessToken},
			authorizer: &fakeAuthorizer{},
			wantStatus: http.StatusUnauthorized,
			wantError:  "access token expired",
		},
		{
			name:       "denied decision hides reason",
			apiKey:     "flk_frotas",
			bearer:     "Bearer access-token",
			validator:  &fakeValidator{claims: sessionClaims()},
			authorizer: &fakeAuthorizer{decision: domain.Decision{Reason: domain.DenyReasonActionNotGranted, LicenseID: "lic-1"}},
			wantStatus: http.StatusForbidden,
			wantError:  notAuthorizedMessage,
		},
		{
			name:       "token issued under another license",
			apiKey:     "flk_other",
			bearer:     "Bearer access-token",
			validator:  &fakeValidator{claims: sessionClaims()},
			authorizer: &fakeAuthorizer{decision: domain.Decision{Allowed: true, LicenseID: "lic-2"}},
			wantStatus: http.StatusForbidden,
			wantError:  notAuthorizedMessage,
		},
		{
			name:       "store failure is not a denial",
			apiKey:     "flk_frotas",
			bearer:     "Bearer access-token",
			validator:  &fakeValidator{claims: sessionClaims()},
			authorizer: &fakeAuthorizer{err: errors.New("postgres unavailable")},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := guardedRouter(t, tc.validator, tc.authorizer)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, guardedRequest(tc.apiKey, tc.bearer))

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if tc.wantError != "" && !strings.Contains(rr.Body.String(), tc.wantError) {
				t.Fatalf("expected body to contain %q, got %s", tc.wantError, rr.Body.String())
			}
			if strings.Contains(rr.Body.String(), string(domain.DenyReasonActionNotGranted)) {
				t.Fatalf("deny reason leaked to client: %s", rr.Body.String())
			}
		})
	}
}

func TestRequireAdminToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(expected string) *gin.Engine {
		router := gin.New()
		router.POST("/admin", RequireAdminToken(expected), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return router
	}

	cases := []struct {
		name       string
		expected   string
		presented  string
		wantStatus int
	}{
		{name: "matching token", expected: "s3cret", presented: "s3cret", wantStatus: http.StatusNoContent},
		{name: "wrong token", expected: "s3cret", presented: "guess", wantStatus: http.StatusUnauthorized},
		{name: "disabled", expected: "", presented: "", wantStatus: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			req.Header.Set(AdminTokenHeader, tc.presented)
			rr := httptest.NewRecorder()
			newRouter(tc.expected).ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}
}
