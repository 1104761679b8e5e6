package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID tags base with request_id and stores the result in ctx.
func WithRequestID(ctx context.Context, base *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	l := base.With(zap.String("request_id", requestID))
	return ContextWithLogger(ctx, l), l
}

// With returns ctx carrying the context logger extended by fields.
func With(ctx context.Context, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}
