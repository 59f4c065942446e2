package logtrace

import "context"

type requestIdContextKey struct{}

// WithRequestId returns a copy of ctx carrying id.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdContextKey{}, id)
}

// RequestIdFromContext returns the request id stored by WithRequestId, or "".
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIdContextKey{}).(string)
	return id
}
