package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys and correlation headers shared by the HTTP middleware.
const (
	TraceIDHeader = "X-Trace-ID"

	TraceIDKey   = "trace_id"
	RequestIDKey = "request_id"
	UserIDKey    = "user_id"
	LicenseIDKey = "license_id"
	ClaimsKey    = "access_claims"
	APIKeyKey    = "api_key"
)

// EnrichContext assigns a trace id to every request. A caller-supplied
// X-Trace-ID wins, then an active span's trace id, then a fresh UUID.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := resolveTraceID(c)
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

func resolveTraceID(c *gin.Context) string {
	if inbound := c.GetHeader(TraceIDHeader); validRequestID(inbound) {
		return inbound
	}
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

// GetTraceID returns the trace id assigned by EnrichContext, or "".
func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}
