package middleware

import "context"

// Tracing returns middleware that records the session id in the context.
func Tracing() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s Session) error {
			ctx = context.WithValue(ctx, traceSessionKey{}, s.ID())
			return next(ctx, s)
		}
	}
}

type traceSessionKey struct{}

// SessionID returns the session id from the context, if set by Tracing middleware.
func SessionID(ctx context.Context) string {
	if v, ok := ctx.Value(traceSessionKey{}).(string); ok {
		return v
	}
	return ""
}
