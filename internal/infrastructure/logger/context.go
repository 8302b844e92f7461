package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "logger"
	tickIDKey contextKey = "tick_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context. A context without one
// yields a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithTickID marks ctx as belonging to one sync tick. The returned logger
// (also stored in the context) stamps every entry with tick_id and kind.
func WithTickID(ctx context.Context, logger *zap.Logger, kind, tickID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, tickIDKey, tickID)
	enriched := logger.With(zap.String("tick_id", tickID), zap.String("kind", kind))
	return WithContext(ctx, enriched), enriched
}

// GetTickID retrieves the tick id from context
func GetTickID(ctx context.Context) string {
	if id, ok := ctx.Value(tickIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTraceContext adds trace_id and span_id from the context's span.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context logger correlated with the active span.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}
