package interceptors

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCMetricsUnaryInterceptorRecordsCodes(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	interceptor := metrics.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/authz.v1.AuthorizationService/Authorize"}

	if _, err := interceptor(context.Background(), struct{}{}, info, func(context.Context, any) (any, error) {
		return "ok", nil
	}); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	if _, err := interceptor(context.Background(), struct{}{}, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unavailable, "store down")
	}); status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}

	for _, code := range []codes.Code{codes.OK, codes.Unavailable} {
		labels := prometheus.Labels{"service": "authz.v1.AuthorizationService", "method": "Authorize", "code": code.String()}
		if got := testutil.ToFloat64(metrics.collectors.Requests.With(labels)); got != 1 {
			t.Fatalf("expected one %s call, got %f", code, got)
		}
	}
	if inflight := testutil.ToFloat64(metrics.collectors.InFlight.WithLabelValues("authz.v1.AuthorizationService")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}
	if samples := testutil.CollectAndCount(metrics.collectors.Duration); samples == 0 {
		t.Fatal("expected histogram to record observations")
	}
}

func TestSplitFullMethod(t *testing.T) {
	cases := map[string][2]string{
		"/authz.v1.AuthorizationService/Entitlements": {"authz.v1.AuthorizationService", "Entitlements"},
		"":          {"unknown", "unknown"},
		"/onlyname": {"unknown", "unknown"},
	}
	for input, want := range cases {
		service, method := splitFullMethod(input)
		if service != want[0] || method != want[1] {
			t.Fatalf("splitFullMethod(%q) = %q, %q", input, service, method)
		}
	}
}
