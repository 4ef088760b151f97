// Package tracing carries a per-request trace ID through explicit context
// values. The ID crosses process boundaries as a plain field on job and
// event payloads, never through ambient storage.
package tracing

import "context"

type contextKey struct{}

// WithTraceID returns a context carrying the given trace ID.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// TraceID retrieves the trace ID, or "" if none was set.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(contextKey{}).(string)
	return v
}
