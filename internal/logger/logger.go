package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type ctxKey string

const (
	RequestIDKey   ctxKey = "request_id"
	LoggerKey      ctxKey = "logger"
	OperationIDKey ctxKey = "operation_id"
	TraceIDKey     ctxKey = "trace_id"
)

var globalLogger zerolog.Logger

// Init initializes the global logger.
func Init(level string, jsonFormat bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if !jsonFormat {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	globalLogger = zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "epic-forecast-api").
		Logger()

	InitAudit()
}

// Global returns the global logger.
func Global() *zerolog.Logger {
	return &globalLogger
}

// Get returns the logger from the context, or the global one.
func Get(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &globalLogger
	}
	if l, ok := ctx.Value(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &globalLogger
}

// FromGin extracts the logger from the Gin request context.
func FromGin(c *gin.Context) *zerolog.Logger {
	return Get(c.Request.Context())
}

// WithRequestID attaches request_id to the logger and context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := globalLogger.With().Str("request_id", requestID).Logger()
	ctx = context.WithValue(ctx, RequestIDKey, requestID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// WithOperationID attaches an operation ID for tracking long jobs.
func WithOperationID(ctx context.Context, operationID string) context.Context {
	existingLogger := Get(ctx)
	l := existingLogger.With().Str("operation_id", operationID).Logger()
	ctx = context.WithValue(ctx, OperationIDKey, operationID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// WithTraceID attaches a trace ID for distributed tracing.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	existingLogger := Get(ctx)
	l := existingLogger.With().Str("trace_id", traceID).Logger()
	ctx = context.WithValue(ctx, TraceIDKey, traceID)
	ctx = context.WithValue(ctx, LoggerKey, &l)
	return ctx
}

// GetRequestID extracts request_id from the context.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetOperationID extracts operation_id from the context.
func GetOperationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}
