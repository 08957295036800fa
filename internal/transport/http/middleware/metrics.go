package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/telemetry"
)

const unmatchedRoute = "unmatched"

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions = telemetry.RequestMetricsOptions

// HTTPMetrics labels requests by their gin route pattern, so path parameters
// such as refresh tokens never become label values.
type HTTPMetrics struct {
	*telemetry.RequestMetrics
}

func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	collectors, err := telemetry.NewRequestMetrics(opts, telemetry.RequestMetricsLayout{
		Subsystem:      "http",
		Noun:           "HTTP requests",
		Labels:         []string{"method", "route", "status"},
		InFlightLabels: []string{"method"},
	})
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{RequestMetrics: collectors}, nil
}

// Handler returns the Gin middleware. A nil receiver yields a pass-through.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		inFlight := m.InFlight.WithLabelValues(c.Request.Method)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		c.Next()
		elapsed := time.Since(start).Seconds()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		values := []string{c.Request.Method, route, strconv.Itoa(c.Writer.Status())}
		m.Requests.WithLabelValues(values...).Inc()
		m.Duration.WithLabelValues(values...).Observe(elapsed)
	}
}
