package logger

import (
	"context"
	"log/slog"
)

type correlationKey struct{}

// WithRequestID tags ctx with a correlation ID: a command connection ID or
// an admin request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// RequestIDFromContext returns the correlation ID of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// With returns l annotated with the correlation ID of ctx. A nil l means
// slog.Default().
func With(ctx context.Context, l *slog.Logger) *slog.Logger {
	l = OrDefault(l)
	if id := RequestIDFromContext(ctx); id != "" {
		return l.With("request_id", id)
	}
	return l
}
