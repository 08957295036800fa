package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness check covers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness checks.
type HealthHandler struct {
	startedAt    time.Time
	dependencies map[string]Pinger
}

// NewHealthHandler builds a health handler. dependencies are keyed by the name reported in
// the readiness payload.
func NewHealthHandler(dependencies map[string]Pinger) *HealthHandler {
	return &HealthHandler{startedAt: time.Now().UTC(), dependencies: dependencies}
}

// Status answers the liveness check.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Ready pings every dependency and answers 503 when any of them fails.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := ReadinessResponse{Status: "ok", Checks: make(map[string]string, len(h.dependencies))}
	status := http.StatusOK
	for name, dependency := range h.dependencies {
		if dependency == nil {
			continue
		}
		if err := dependency.Ping(ctx); err != nil {
			_ = c.Error(err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, resp)
}
