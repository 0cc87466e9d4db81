package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "canteen-backend",
		Enabled:     true,
	}
}

// Tracing returns the otelgin server span middleware followed by SpanEnricher.
// Health probes are not traced. Span names follow "HTTP METHOD route", e.g.
// "POST /api/v1/orders".
func Tracing(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return nil
	}

	opts := []otelgin.Option{
		otelgin.WithFilter(func(r *http.Request) bool {
			return !strings.HasPrefix(r.URL.Path, "/health")
		}),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return []gin.HandlerFunc{otelgin.Middleware(cfg.ServiceName, opts...), SpanEnricher()}
}

// SpanEnricher tags the server span with the request id and idempotency key,
// and marks client errors, which otelgin leaves unset
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if key := c.GetHeader("Idempotency-Key"); key != "" && len(key) <= MaxRequestIDLength {
			span.SetAttributes(attribute.String("idempotency_key", key))
		}

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if replayed := c.Writer.Header().Get("Idempotent-Replayed"); replayed != "" {
			span.SetAttributes(attribute.Bool("idempotent_replayed", replayed == "true"))
		}
	}
}
