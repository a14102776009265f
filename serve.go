package namedpipe

import (
	"context"
	"fmt"
	"time"

	mw "github.com/LukasParke/namedpipe/middleware"
)

// Handler services one accepted connection. Serve closes conn after the
// handler returns.
type Handler func(ctx context.Context, conn *Endpoint) error

const defaultPollInterval = 200 * time.Millisecond

// interval is the next poll interval. A non-positive value would turn the
// loop into a busy poll, so it falls back to the default.
func (cfg *serveConfig) interval() time.Duration {
	if d := cfg.pollInterval(); d > 0 {
		return d
	}
	return defaultPollInterval
}

// Serve runs an accept loop on srv, listening first if srv is unopened.
// Connections are handled one at a time on the calling goroutine. Between
// accepts Serve waits at most the poll interval, so it returns nil soon
// after ctx is done. A zero or negative interval means the default. It does
// not close srv.
func Serve(ctx context.Context, srv *Endpoint, h Handler, opts ...ServeOption) error {
	cfg := &serveConfig{
		pollInterval: func() time.Duration { return defaultPollInterval },
		logger:       srv.logger,
	}
	for _, o := range opts {
		o(cfg)
	}

	if srv.State() == StateUnopened {
		if err := srv.Listen(); err != nil {
			return err
		}
	}

	handler := mw.Handler(func(ctx context.Context, s mw.Session) error {
		return h(ctx, s.(*Endpoint))
	})
	if len(cfg.middlewares) > 0 {
		handler = mw.Chain(cfg.middlewares...)(handler)
	}

	if cfg.store != nil {
		defer cfg.store.OnChange(func(old, cur *Config) {
			if old.AcceptTimeout != cur.AcceptTimeout {
				cfg.logger.Info("poll interval changed", "path", srv.Path(), "interval", cur.AcceptTimeout.Duration)
			}
		})()
	}
	cfg.logger.Info("serving", "path", srv.Path(), "id", srv.ID())

	for ctx.Err() == nil {
		conn, ok, err := srv.AcceptTimeout(cfg.interval())
		if err != nil {
			return fmt.Errorf("serving %s: %w", srv.Path(), err)
		}
		if !ok {
			continue
		}
		if err := handler(ctx, conn); err != nil {
			cfg.logger.Warn("handler failed", "conn", conn.ID(), "error", err)
		}
		if err := conn.Close(); err != nil {
			cfg.logger.Warn("closing connection", "conn", conn.ID(), "error", err)
		}
	}
	return nil
}
