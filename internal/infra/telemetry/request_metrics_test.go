package telemetry

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var testLayout = RequestMetricsLayout{
	Subsystem:      "http",
	Noun:           "HTTP requests",
	Labels:         []string{"method", "route", "status"},
	InFlightLabels: []string{"method"},
}

func TestNewRequestMetricsAppliesDefaults(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewRequestMetrics(RequestMetricsOptions{Registerer: registry}, testLayout)
	if err != nil {
		t.Fatalf("NewRequestMetrics returned error: %v", err)
	}

	metrics.Requests.WithLabelValues("GET", "/healthz", "200").Inc()

	expected := `
# HELP authz_http_requests_total Completed HTTP requests.
# TYPE authz_http_requests_total counter
authz_http_requests_total{method="GET",route="/healthz",status="200"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "authz_http_requests_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestNewRequestMetricsReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewRequestMetrics(RequestMetricsOptions{Registerer: registry}, testLayout)
	if err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	second, err := NewRequestMetrics(RequestMetricsOptions{Registerer: registry}, testLayout)
	if err != nil {
		t.Fatalf("second registration failed: %v", err)
	}
	if first.Requests != second.Requests || first.InFlight != second.InFlight {
		t.Fatal("expected existing collectors to be reused")
	}
}

func TestRegisterRejectsConflictingCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	opts := prometheus.CounterOpts{Name: "authz_conflict_total", Help: "first"}
	if _, err := Register(registry, prometheus.NewCounter(opts)); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	_, err := Register(registry, prometheus.NewCounterVec(opts, []string{"label"}))
	if err == nil {
		t.Fatal("expected conflicting descriptor to fail registration")
	}
}
