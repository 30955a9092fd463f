package middleware

import (
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nathanyu/trading-oms/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Pattern to normalize paths carrying order IDs
var orderIDPattern = regexp.MustCompile(`/order/[^/]+`)

// normalizePath converts high-cardinality paths to low-cardinality patterns
func normalizePath(path string) string {
	return orderIDPattern.ReplaceAllString(path, "/order/{order_id}")
}

// Tracing middleware adds OpenTelemetry tracing to requests
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		if telemetry.Tracer == nil {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		normalizedPath := normalizePath(path)

		ctx, span := telemetry.Tracer.Start(c.Request.Context(), "HTTP "+c.Request.Method+" "+normalizedPath,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", normalizedPath),
				attribute.String("http.target", c.Request.URL.Path),
				attribute.String("http.host", c.Request.Host),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int64("http.duration_ms", duration.Milliseconds()),
		)
		if statusCode >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
