package namedpipe

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LukasParke/namedpipe/config"
)

// Config is the file form of an endpoint's settings, read with LoadConfig.
//
//	name            = "hello"
//	namespace       = "/run/myapp/"
//	accept_timeout  = "200ms"
//	connect_timeout = "5s"
//	log_level       = "debug"
type Config struct {
	Name           string          `toml:"name"`
	Namespace      string          `toml:"namespace"`
	AcceptTimeout  config.Duration `toml:"accept_timeout"`
	ConnectTimeout config.Duration `toml:"connect_timeout"`
	LogLevel       string          `toml:"log_level"`
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		AcceptTimeout:  config.Duration{Duration: 200 * time.Millisecond},
		ConnectTimeout: config.Duration{Duration: 5 * time.Second},
		LogLevel:       "info",
	}
}

// Validate implements config.Validatable.
func (c *Config) Validate() error {
	var errs []error
	if c.Name != "" {
		if err := validateName(c.Name); err != nil {
			errs = append(errs, fmt.Errorf("name: %w", err))
		}
	}
	if c.AcceptTimeout.Duration <= 0 {
		errs = append(errs, errors.New("accept_timeout must be positive"))
	}
	if c.ConnectTimeout.Duration < 0 {
		errs = append(errs, errors.New("connect_timeout must not be negative"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel. An empty level is info.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// Options converts the settings into endpoint options.
func (c *Config) Options(logger *slog.Logger) []Option {
	var opts []Option
	if c.Namespace != "" {
		opts = append(opts, WithNamespace(c.Namespace))
	}
	if logger != nil {
		opts = append(opts, WithLogger(logger))
	}
	return opts
}

// LoadConfig reads a TOML file over DefaultConfig. A missing file is not an
// error.
func LoadConfig(path string) (*Config, error) {
	defaults := DefaultConfig()
	return config.LoadTOML(path, &defaults)
}

// WatchConfig loads path into a store and keeps it current as the file
// changes. Reload failures are logged and leave the previous value in place.
// Close the returned watcher to stop.
func WatchConfig(path string, logger *slog.Logger) (*config.Store[Config], *config.Watcher, error) {
	initial, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	store := config.NewStore(initial)

	defaults := DefaultConfig()
	bridge := config.NewFileBridge(store, path, &defaults)
	watcher, err := config.NewWatcher(path, func() {
		if err := bridge.Reload(); err != nil {
			logger.Warn("failed to reload config", "path", path, "error", err)
		}
	}, config.WithWatcherLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("watching config %s: %w", path, err)
	}
	return store, watcher, nil
}
