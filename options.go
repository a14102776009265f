package namedpipe

import (
	"log/slog"
	"time"

	"github.com/LukasParke/namedpipe/config"
	"github.com/LukasParke/namedpipe/middleware"
	"github.com/LukasParke/namedpipe/transport"
)

// Option configures an Endpoint during construction.
type Option func(*Endpoint)

// ServeOption configures Serve.
type ServeOption func(*serveConfig)

type serveConfig struct {
	pollInterval func() time.Duration
	store        *config.Store[Config]
	middlewares  []middleware.Middleware
	logger       *slog.Logger
}

// WithLogger sets the endpoint's logger. Accepted endpoints inherit it.
func WithLogger(l *slog.Logger) Option {
	return func(e *Endpoint) {
		e.logger = l
	}
}

// WithDriver replaces the platform driver, typically with transport.NewMemory
// in tests. Accepted endpoints inherit it.
func WithDriver(d transport.Driver) Option {
	return func(e *Endpoint) {
		e.driver = d
	}
}

// WithNamespace overrides the namespace root the name is placed under
// (transport.DefaultNamespace by default). Both sides of a rendezvous must
// agree on it.
func WithNamespace(root string) Option {
	return func(e *Endpoint) {
		e.namespace = root
	}
}

// WithPollInterval sets how long each AcceptTimeout call inside Serve waits
// before Serve checks its context again (default 200ms). Zero or negative
// means the default.
func WithPollInterval(d time.Duration) ServeOption {
	return func(cfg *serveConfig) {
		cfg.pollInterval = func() time.Duration { return d }
	}
}

// WithConfigStore makes Serve read its poll interval from the store on every
// iteration, so a reloaded AcceptTimeout applies without a restart.
func WithConfigStore(s *config.Store[Config]) ServeOption {
	return func(cfg *serveConfig) {
		cfg.store = s
		cfg.pollInterval = func() time.Duration {
			return s.Get().AcceptTimeout.Duration
		}
	}
}

// WithMiddleware wraps the connection handler. The first middleware is
// outermost.
func WithMiddleware(mws ...middleware.Middleware) ServeOption {
	return func(cfg *serveConfig) {
		cfg.middlewares = append(cfg.middlewares, mws...)
	}
}

// WithServeLogger sets the logger Serve reports handler failures to.
// It defaults to the server endpoint's logger.
func WithServeLogger(l *slog.Logger) ServeOption {
	return func(cfg *serveConfig) {
		cfg.logger = l
	}
}
