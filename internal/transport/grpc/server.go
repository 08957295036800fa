package transportgrpc

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/RicardoG2004/Frotas-2025-sub013/internal/transport/grpc/interceptors"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Decisions      DecisionService
	Keys           KeySetSource
	Validator      grpcinterceptors.TokenValidator
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
	PublicMethods  []string // methods that skip the api key check
}

// NewServer wires the authorization service with api key and token checks enforced through interceptors.
func NewServer(deps ServerDependencies) (*grpc.Server, error) {
	if deps.Decisions == nil {
		return nil, fmt.Errorf("decision service is required")
	}
	if deps.Validator == nil {
		return nil, fmt.Errorf("token validator is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	publicMethods := deps.PublicMethods
	if publicMethods == nil {
		publicMethods = []string{JWKSMethod}
	}

	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Validator, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: publicMethods,
	})
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		deps.Metrics.UnaryServerInterceptor(),
		authInterceptor.UnaryServerInterceptor(),
	}

	options := []grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryInterceptors...)}
	if deps.TracerProvider != nil {
		options = append(options, grpcinterceptors.TracingServerOption(deps.TracerProvider))
	}

	server := grpc.NewServer(options...)
	server.RegisterService(&AuthorizationServiceDesc, NewAuthorizationServer(deps.Decisions, deps.Keys, logger))

	// Reflection lets grpcurl list the service.
	reflection.Register(server)

	return server, nil
}
