// Package middleware provides the gin middleware chain of the ledger API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength caps the request ID copied onto spans
	MaxRequestIDLength = 128
	maxActorIDLength   = 64
	actorHeader        = "X-Actor-ID"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing wraps otelgin and adds request_id and actor_id to the server span.
// Spans are named after the route pattern, e.g. "POST /api/v1/allocations/:id/consume".
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes copies correlation IDs onto the active span. It runs after
// Tracing so the span exists.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := truncate(c.GetString(requestIDKey), MaxRequestIDLength); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if actor := truncate(c.GetHeader(actorHeader), maxActorIDLength); actor != "" {
				span.SetAttributes(attribute.String("actor_id", actor))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the span as failed for 5xx responses and records the
// API error code carried by 4xx ones.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if code := c.GetString(ErrorCodeKey); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// ErrorCodeKey is the gin key under which handlers record the API error code
const ErrorCodeKey = "error_code"

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
