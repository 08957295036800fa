package interceptors

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/telemetry"
)

// GRPCMetricsOptions controls construction of gRPC metrics collectors.
type GRPCMetricsOptions = telemetry.RequestMetricsOptions

// GRPCMetrics records unary calls by service, method and status code.
type GRPCMetrics struct {
	collectors *telemetry.RequestMetrics
}

func NewGRPCMetrics(opts GRPCMetricsOptions) (*GRPCMetrics, error) {
	collectors, err := telemetry.NewRequestMetrics(opts, telemetry.RequestMetricsLayout{
		Subsystem:      "grpc",
		Noun:           "gRPC unary calls",
		Labels:         []string{"service", "method", "code"},
		InFlightLabels: []string{"service"},
	})
	if err != nil {
		return nil, err
	}
	return &GRPCMetrics{collectors: collectors}, nil
}

// UnaryServerInterceptor returns the recording interceptor; a nil receiver passes calls through.
func (m *GRPCMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if m == nil {
			return handler(ctx, req)
		}

		service, method := splitFullMethod(info.FullMethod)
		gauge := m.collectors.InFlight.WithLabelValues(service)
		gauge.Inc()
		defer gauge.Dec()

		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err).String()

		m.collectors.Requests.WithLabelValues(service, method, code).Inc()
		m.collectors.Duration.WithLabelValues(service, method, code).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// splitFullMethod turns "/pkg.Service/Method" into its parts.
func splitFullMethod(full string) (string, string) {
	service, method, found := strings.Cut(strings.TrimPrefix(full, "/"), "/")
	if !found || service == "" || method == "" {
		return "unknown", "unknown"
	}
	return service, method
}
