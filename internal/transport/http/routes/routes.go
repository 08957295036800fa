package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/handlers"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/middleware"
)

// DecisionService is the decision engine as seen by both the guard and the handlers.
type DecisionService interface {
	middleware.FeatureAuthorizer
	handlers.DecisionService
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Sessions  handlers.SessionService
	Decisions DecisionService
	Tokens    middleware.AccessTokenValidator
	Licenses  handlers.LicenseAdministration
	Profiles  handlers.ProfileAdministration
}

// Guard returns the handler chain that protects a route with one feature/action pair.
type Guard func(featureKey string, action domain.Action) []gin.HandlerFunc

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Services    ServiceSet
	Keys        handlers.KeySetSource
	Readiness   map[string]handlers.Pinger
	// Protected mounts feature-guarded routes on /api/v1. This service has no business
	// routes of its own; back ends embedding it mount theirs here, each behind guard.
	Protected func(api *gin.RouterGroup, guard Guard)
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())
	r.Use(middleware.CORS(cfg.App.AllowedOrigins))

	healthHandler := handlers.NewHealthHandler(deps.Readiness)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	} else {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.Keys).Keys)

	services := deps.Services
	api := r.Group("/api/v1")

	if services.Sessions != nil {
		handlers.NewAuthHandler(services.Sessions).RegisterRoutes(api.Group("/auth"),
			ipRateLimit(deps, "auth_login_ip", cfg.RateLimit.LoginMaxAttempts),
			ipRateLimit(deps, "auth_refresh_ip", cfg.RateLimit.RefreshMaxAttempts),
		)
	}

	if services.Decisions != nil {
		decisions := handlers.NewAuthorizationHandler(services.Decisions, deps.Logger)
		api.POST("/authorize", middleware.RequireAPIKey(), decisions.Authorize)

		if services.Tokens != nil {
			api.GET("/me/entitlements", middleware.RequireAPIKey(), middleware.RequireAuth(services.Tokens), decisions.Entitlements)

			if deps.Protected != nil {
				deps.Protected(api, newGuard(services, deps.Logger))
			}
		}
	}

	if services.Licenses != nil && services.Profiles != nil {
		admin := api.Group("/admin", middleware.RequireAdminToken(cfg.Admin.Token))
		handlers.NewAdminHandler(services.Licenses, services.Profiles).RegisterRoutes(admin)
	}

	return r
}

func newGuard(services ServiceSet, log *zap.Logger) Guard {
	apiKey := middleware.RequireAPIKey()
	auth := middleware.RequireAuth(services.Tokens)

	return func(featureKey string, action domain.Action) []gin.HandlerFunc {
		return []gin.HandlerFunc{apiKey, auth, middleware.RequireFeature(services.Decisions, log, featureKey, action)}
	}
}

func ipRateLimit(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})}
}
