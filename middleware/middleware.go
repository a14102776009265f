// Package middleware provides composable wrappers for the connection handlers
// run by namedpipe.Serve. Middleware applies cross-cutting concerns like
// logging, panic recovery, and session metrics to every accepted connection.
package middleware

import "context"

// Session is the accepted connection a handler is given.
type Session interface {
	ID() string
}

// Handler services one accepted connection.
type Handler func(ctx context.Context, s Session) error

// Middleware wraps a Handler to add cross-cutting behavior.
type Middleware func(Handler) Handler

// Chain composes multiple middleware into a single middleware.
// Middleware is applied in the order given: the first middleware in the slice
// is the outermost wrapper (executes first).
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
