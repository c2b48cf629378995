package logging

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// traceIDKey is the context key for the per-invocation trace ID.
type traceIDKey struct{}

// ContextWithTraceID returns a copy of ctx carrying the given trace ID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID attached to ctx, or an empty string.
func TraceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetOrGenerateTraceID returns the trace ID from ctx, generating a fresh ULID
// when none is present.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	return NewTraceID()
}

// NewTraceID generates a new ULID-based trace identifier.
func NewTraceID() string {
	return ulid.Make().String()
}

// TraceHook injects the context trace ID into every log event. Events must be
// tagged with .Ctx(ctx) for the hook to see the invocation context.
type TraceHook struct{}

// Run implements zerolog.Hook.
func (TraceHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if id := TraceIDFromContext(e.GetCtx()); id != "" {
		e.Str("trace_id", id)
	}
}
