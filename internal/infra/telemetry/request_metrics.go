package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetricsOptions configures the per-transport request collectors.
// Zero fields fall back to the default registerer, the "authz" namespace and
// prometheus.DefBuckets.
type RequestMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// RequestMetricsLayout names the labels and help texts of one transport's collectors.
type RequestMetricsLayout struct {
	Subsystem      string
	Noun           string
	Labels         []string
	InFlightLabels []string
}

// RequestMetrics is the counter, latency histogram and in-flight gauge trio
// shared by the HTTP and gRPC transports.
type RequestMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewRequestMetrics registers the trio, reusing collectors a previous call
// already registered on the same registerer.
func NewRequestMetrics(opts RequestMetricsOptions, layout RequestMetricsLayout) (*RequestMetrics, error) {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Namespace == "" {
		opts.Namespace = "authz"
	}
	if opts.Subsystem == "" {
		opts.Subsystem = layout.Subsystem
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = prometheus.DefBuckets
	}

	requests, err := Register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "requests_total",
		Help:      fmt.Sprintf("Completed %s.", layout.Noun),
	}, layout.Labels))
	if err != nil {
		return nil, err
	}
	duration, err := Register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "request_duration_seconds",
		Help:      fmt.Sprintf("Latency of %s in seconds.", layout.Noun),
		Buckets:   opts.Buckets,
	}, layout.Labels))
	if err != nil {
		return nil, err
	}
	inFlight, err := Register(opts.Registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: opts.Subsystem,
		Name:      "in_flight_requests",
		Help:      fmt.Sprintf("%s currently being served.", layout.Noun),
	}, layout.InFlightLabels))
	if err != nil {
		return nil, err
	}

	return &RequestMetrics{Requests: requests, Duration: duration, InFlight: inFlight}, nil
}

// Register adds collector to reg. When an equal collector is already
// registered the existing one is returned instead.
func Register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return collector, fmt.Errorf("register collector: %w", err)
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return collector, fmt.Errorf("collector already registered as %T", already.ExistingCollector)
	}
	return existing, nil
}
