package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/middleware"
)

var (
	listenTimeout time.Duration
	listenOnce    bool
	listenWatch   bool
)

var listenCmd = &cobra.Command{
	Use:   "listen [name]",
	Short: "Listen on an endpoint and report each connection",
	Long: `Listen opens the named endpoint as a server and accepts connections until
interrupted. Each accepted connection is printed and closed. With --watch the
accept timeout follows edits to the config file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := endpointName(args)
		if err != nil {
			return err
		}
		srv, err := namedpipe.NewServer(name, endpointOptions()...)
		if err != nil {
			return err
		}
		defer srv.Close()
		if err := srv.Listen(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Listening on %s\n", srv.Path())

		metrics := middleware.NewMetrics()
		opts := []namedpipe.ServeOption{
			namedpipe.WithServeLogger(logger),
			namedpipe.WithMiddleware(
				middleware.Recovery(logger),
				middleware.Logging(logger),
				middleware.Telemetry(metrics),
				middleware.Tracing(),
			),
		}
		switch {
		case cmd.Flags().Changed("timeout"):
			opts = append(opts, namedpipe.WithPollInterval(listenTimeout))
		case listenWatch:
			store, watcher, err := namedpipe.WatchConfig(cfgFile, logger)
			if err != nil {
				return err
			}
			defer watcher.Close()
			defer store.OnChange(func(_, cur *namedpipe.Config) {
				logger.Debug("config reloaded", "path", cfgFile, "log_level", cur.LogLevel)
			})()
			opts = append(opts, namedpipe.WithConfigStore(store))
		default:
			opts = append(opts, namedpipe.WithPollInterval(cfg.AcceptTimeout.Duration))
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		err = namedpipe.Serve(ctx, srv, func(ctx context.Context, conn *namedpipe.Endpoint) error {
			fmt.Fprintf(out, "Accepted %s\n", conn.ID())
			if listenOnce {
				cancel()
			}
			return nil
		}, opts...)
		if err != nil {
			return err
		}

		snap := metrics.Snapshot()
		fmt.Fprintf(out, "Handled %d connection(s), %d failed\n", snap.Count, snap.Errors)
		return nil
	},
}

func init() {
	listenCmd.Flags().DurationVar(&listenTimeout, "timeout", 0, "accept poll interval (default from accept_timeout)")
	listenCmd.Flags().BoolVar(&listenOnce, "once", false, "exit after the first connection")
	listenCmd.Flags().BoolVar(&listenWatch, "watch", false, "reload accept_timeout when the config file changes")
	rootCmd.AddCommand(listenCmd)
}
