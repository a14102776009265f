package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recovery returns middleware that recovers from panics in handlers,
// logs the stack trace, and turns the panic into an error.
func Recovery(logger ...*slog.Logger) Middleware {
	var log *slog.Logger
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	} else {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, s Session) (err error) {
			defer func() {
				if r := recover(); r != nil {
					stack := debug.Stack()
					log.Error("panic recovered in handler",
						"session", s.ID(),
						"panic", fmt.Sprint(r),
						"stack", string(stack),
					)
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, s)
		}
	}
}
