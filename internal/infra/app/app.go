package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/port"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/database"
	kafkainfra "github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/kafka"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/logger"
	redisinfra "github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/redis"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/security"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/telemetry"
	postgresrepo "github.com/RicardoG2004/Frotas-2025-sub013/internal/repository/postgres"
	redisrepo "github.com/RicardoG2004/Frotas-2025-sub013/internal/repository/redis"
	transportgrpc "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc"
	grpcinterceptors "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc/interceptors"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/handlers"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/middleware"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/http/routes"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/usecase"
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	store      *postgresrepo.Store
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *grpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(registry, "authz")
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init grpc metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	store := postgresrepo.NewStore(pool)
	repos := store.Repositories()

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory, cfg.JWT.KeyID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}
	jwtManager := security.NewJWTManager(keyProvider, cfg.JWT.KeyID)

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("configure argon2: %w", err)
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	licenseCache := redisrepo.NewLicenseCache(redisClient.Client(), cfg.Redis.LicenseCachePrefix)
	licenseCacheTTL := cfg.Redis.LicenseCacheTTL
	if licenseCacheTTL <= 0 {
		licenseCacheTTL = 5 * time.Minute
	}
	policy := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.Redis.DegradationPolicy))

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	var (
		eventPublisher port.EventPublisher
		producer       *kafkainfra.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, cfg.App.Name, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	resolver := usecase.NewCredentialResolver(repos.Licenses, log).
		WithCache(licenseCache, licenseCacheTTL, policy).
		WithObserver(metrics)
	aggregator := usecase.NewEntitlementAggregator(repos.Profiles)
	decisions := usecase.NewDecisionEngine(resolver, aggregator, log).WithObserver(metrics)
	verifier := usecase.NewTokenVerifier(cfg, jwtManager)

	sessions := usecase.NewSessionIssuer(cfg, resolver, repos.Licenses, repos.Users, aggregator, repos.Tokens, hasher, jwtManager, log).
		WithEventPublisher(eventPublisher).
		WithReplayObserver(metrics)
	licenses := usecase.NewLicenseService(repos.Licenses, resolver, log).WithEventPublisher(eventPublisher)
	profiles := usecase.NewProfileService(repos.Licenses, repos.Profiles, repos.Users)

	grpcSrv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Decisions:      decisions,
		Keys:           jwtManager,
		Validator:      verifier,
		Metrics:        grpcMetrics,
		TracerProvider: tracer.Provider(),
		Logger:         log,
	})
	if err != nil {
		_ = redisClient.Close()
		store.Close()
		return nil, fmt.Errorf("init grpc server: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     httpMetrics,
		Gatherer:    registry,
		Keys:        jwtManager,
		Readiness: map[string]handlers.Pinger{
			"postgres": store,
			"redis":    redisClient,
		},
		Services: routes.ServiceSet{
			Sessions:  sessions,
			Decisions: decisions,
			Tokens:    verifier,
			Licenses:  licenses,
			Profiles:  profiles,
		},
		// Protected stays nil: feature-guarded business routes belong to the back ends
		// that embed this engine.
	})

	return &Application{
		cfg:        cfg,
		engine:     engine,
		logger:     log,
		store:      store,
		redis:      redisClient,
		producer:   producer,
		tracer:     tracer,
		grpcServer: grpcSrv,
		grpcAddr:   fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port),
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.store.Close()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()
	defer func() {
		if err := a.tracer.Shutdown(context.Background()); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}()

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcListener net.Listener
	if a.grpcServer != nil && a.cfg.GRPC.Port > 0 {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcListener = lis
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.logger.Info("serving HTTP", zap.String("env", a.cfg.App.Env), zap.String("address", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if grpcListener != nil {
		group.Go(func() error {
			a.logger.Info("serving gRPC", zap.String("address", a.grpcAddr))
			if err := a.grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve grpc: %w", err)
			}
			return nil
		})
	}

	// Either a signal or a failing server stops both listeners.
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if grpcListener != nil {
			a.grpcServer.GracefulStop()
		}
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		a.logger.Info("listeners stopped")
		return nil
	})

	return group.Wait()
}
