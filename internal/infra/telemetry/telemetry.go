package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/core/domain"
)

// Metrics holds the authorization-specific collectors.
type Metrics struct {
	decisions    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	replays      prometheus.Counter
}

// NewMetrics registers the collectors with reg, or the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "authz"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}
	err := safeRegister(func() {
		m.decisions = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Authorization decisions partitioned by outcome and deny reason.",
		}, []string{"outcome", "reason", "detail"})
		m.cacheLookups = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "license_cache",
			Name:      "lookups_total",
			Help:      "License cache lookups partitioned by result.",
		}, []string{"result"})
		m.replays = factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_replays_total",
			Help:      "Refresh tokens presented after they had already been consumed.",
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// promauto panics on duplicate registration; surface that as an error instead.
func safeRegister(register func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register telemetry collectors: %v", r)
		}
	}()
	register()
	return nil
}

// ObserveDecision counts an authorization decision.
func (m *Metrics) ObserveDecision(decision domain.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision.Outcome(), string(decision.Reason), string(decision.Detail)).Inc()
}

// ObserveCacheLookup counts a license cache lookup result.
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRefreshReplay counts a detected refresh token replay.
func (m *Metrics) ObserveRefreshReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// Decisions exposes the decision counter.
func (m *Metrics) Decisions() *prometheus.CounterVec {
	return m.decisions
}

// CacheLookups exposes the cache lookup counter.
func (m *Metrics) CacheLookups() *prometheus.CounterVec {
	return m.cacheLookups
}
