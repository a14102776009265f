package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs each session's id, duration, and error.
func Logging(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s Session) error {
			start := time.Now()
			err := next(ctx, s)
			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("session", s.ID()),
				slog.Duration("duration", duration),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "session failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelDebug, "session handled", attrs...)
			}

			return err
		}
	}
}
