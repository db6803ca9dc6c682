package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
)

const (
	// HeaderRequestID is the HTTP header carrying the request ID
	HeaderRequestID = "X-Request-ID"
	// HeaderTraceID is the HTTP header for distributed tracing
	HeaderTraceID = "X-Trace-ID"
)

// RequestID attaches a unique request_id to every request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Reuse an inbound ID when present, otherwise mint one (8 chars)
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}

		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		ctx = logger.WithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		log := logger.Get(ctx)
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int64("content_length", c.Request.ContentLength).
			Msg("Request started")

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		logEvent := log.Info()
		if statusCode >= 400 {
			logEvent = log.Warn()
		}
		if statusCode >= 500 {
			logEvent = log.Error()
		}

		logEvent.
			Int("status", statusCode).
			Int("size", c.Writer.Size()).
			Dur("latency", duration).
			Float64("latency_ms", float64(duration.Microseconds())/1000).
			Msg("Request completed")
	}
}
