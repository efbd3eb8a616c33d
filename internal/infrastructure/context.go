package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID stores a correlation ID in the context. The logging handler
// stamps it on every record written under this context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the correlation ID from the context, or "".
func GetTraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureTraceID returns a context that carries a correlation ID, minting a
// fresh UUID when none is present. The pipeline CLI calls this once so a
// whole run's log lines correlate; HTTP middleware does its own per-request
// stamping.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.New().String())
}
