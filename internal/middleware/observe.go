package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"socialsync/internal/monitor"
)

// unmatchedRoute labels requests that matched no route
const unmatchedRoute = "unmatched"

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// Metrics records request count and latency per route template
func Metrics(mc *monitor.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		mc.RecordHTTPRequest(c.Request.Method, routeOf(c), strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// Tracing opens a server span per request and hands its context to downstream handlers
func Tracing(tracer *monitor.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.StartHTTPSpan(c.Request.Context(), routeOf(c), c.Request)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if traceID := monitor.TraceID(ctx); traceID != "" {
			c.Header("X-Trace-ID", traceID)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if len(c.Errors) > 0 {
			tracer.RecordError(span, c.Errors.Last().Err)
		} else if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}
	}
}
