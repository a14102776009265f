package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/transport"
)

var (
	// Global flags
	cfgFile   string
	namespace string
	logLevel  string

	// Shared state set during PersistentPreRun
	cfg    *namedpipe.Config
	logger *slog.Logger
	driver transport.Driver
)

// rootCmd is the base command for pipectl.
var rootCmd = &cobra.Command{
	Use:   "pipectl",
	Short: "Listen on and connect to local IPC endpoints",
	Long: `pipectl opens unix domain sockets or Windows named pipes by name.
Run "pipectl listen NAME" in one terminal and "pipectl connect NAME" in
another to check that two processes can rendezvous.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = namedpipe.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		if namespace != "" {
			cfg.Namespace = namespace
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		lvl, err := cfg.Level()
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
		return nil
	},
}

// Execute runs the root command. An interrupt cancels the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// SetDriver allows tests to swap the OS transport for another driver.
func SetDriver(d transport.Driver) {
	driver = d
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

// endpointOptions builds the options shared by every subcommand.
func endpointOptions() []namedpipe.Option {
	opts := cfg.Options(logger)
	if driver != nil {
		opts = append(opts, namedpipe.WithDriver(driver))
	}
	return opts
}

// endpointName picks the name from the arguments, falling back to the config.
func endpointName(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Name == "" {
		return "", fmt.Errorf("no endpoint name: pass NAME or set name in the config file")
	}
	return cfg.Name, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "pipe.toml", "TOML config file, ignored when missing")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", "", "directory or pipe prefix the name lives under")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}
