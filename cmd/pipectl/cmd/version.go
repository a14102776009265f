package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/LukasParke/namedpipe/transport"
)

// version is set at build time via -ldflags "-X github.com/LukasParke/namedpipe/cmd/pipectl/cmd.pipectlVersion=x.y.z"
var pipectlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the pipectl version and endpoint namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "pipectl version %s (%s/%s)\n", pipectlVersion, runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(cmd.OutOrStdout(), "default namespace: %s\n", transport.DefaultNamespace)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
