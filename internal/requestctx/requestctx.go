// Package requestctx carries the per-request correlation id through
// contexts so that logs, usage records and events can be joined.
package requestctx

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderName is the HTTP header used to propagate the id.
const HeaderName = "X-Request-ID"

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
