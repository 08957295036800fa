package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
)

func TestMetricsCountDecisions(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry, "")
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}

	metrics.ObserveDecision(domain.Decision{Allowed: true})
	metrics.ObserveDecision(domain.Decision{Reason: domain.DenyReasonLicenseUnusable, Detail: domain.UnusableReasonBlocked})
	metrics.ObserveDecision(domain.Decision{Reason: domain.DenyReasonLicenseUnusable, Detail: domain.UnusableReasonBlocked})

	if got := testutil.ToFloat64(metrics.Decisions().WithLabelValues("allow", "", "")); got != 1 {
		t.Fatalf("expected 1 allow, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.Decisions().WithLabelValues("deny", "license_unusable", "blocked")); got != 2 {
		t.Fatalf("expected 2 blocked denials, got %f", got)
	}
}

func TestMetricsCountCacheLookupsAndReplays(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewMetrics(registry, "authz")
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}

	metrics.ObserveCacheLookup("hit")
	metrics.ObserveCacheLookup("miss")
	metrics.ObserveCacheLookup("hit")
	metrics.ObserveRefreshReplay()

	if got := testutil.ToFloat64(metrics.CacheLookups().WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.replays); got != 1 {
		t.Fatalf("expected 1 replay, got %f", got)
	}
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := NewMetrics(registry, "authz"); err != nil {
		t.Fatalf("first NewMetrics returned error: %v", err)
	}
	if _, err := NewMetrics(registry, "authz"); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveDecision(domain.Decision{Allowed: true})
	metrics.ObserveCacheLookup("hit")
	metrics.ObserveRefreshReplay()
}

func TestDisabledTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), config.TelemetrySettings{Enabled: false}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTracerProvider returned error: %v", err)
	}
	if tp.Enabled() {
		t.Fatal("expected disabled provider")
	}
	if tp.Tracer("test") == nil {
		t.Fatal("expected a tracer even when disabled")
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
}
