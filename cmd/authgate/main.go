// Command authgate runs an HTTP server whose routes are protected by the
// authgate dispatcher, as declared in its config file.
//
// Configuration is read from --config, AUTHGATE_CONFIG, ./config.yaml or
// /etc/authgate/config.yaml, with AUTHGATE_* environment overrides.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "authgate",
		Short: "Authentication gateway for HTTP routes",
		Long: `authgate authenticates HTTP requests with a configurable set of
strategies (signed requests, signed URIs, bearer tickets, static
credentials and encrypted cookies) and enforces per-route policies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		checkCmd(&configPath),
		versionCmd(),
	)
	return rootCmd
}
