package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/LukasParke/namedpipe"
)

var (
	connectTimeout time.Duration
	connectHold    time.Duration
)

var connectCmd = &cobra.Command{
	Use:   "connect [name]",
	Short: "Connect to a listening endpoint",
	Long: `Connect opens the named endpoint as a client, optionally holds the
connection open for --hold, and closes it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := endpointName(args)
		if err != nil {
			return err
		}
		client, err := namedpipe.NewClient(name, endpointOptions()...)
		if err != nil {
			return err
		}
		defer client.Close()

		timeout := cfg.ConnectTimeout.Duration
		if cmd.Flags().Changed("timeout") {
			timeout = connectTimeout
		}
		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := client.Connect(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s\n", client.Path())

		if connectHold > 0 {
			select {
			case <-time.After(connectHold):
			case <-cmd.Context().Done():
			}
		}
		return client.Close()
	},
}

func init() {
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 0, "give up after this long (default from connect_timeout)")
	connectCmd.Flags().DurationVar(&connectHold, "hold", 0, "keep the connection open this long before closing")
	rootCmd.AddCommand(connectCmd)
}
