// Package main is the entry point for the statusrelay CLI.
//
// Usage:
//
//	statusrelay serve -c config.yaml          # Start the API and websocket server
//	statusrelay validate -c config.yaml       # Validate configuration
//	statusrelay seed validate seed.yaml       # Validate a seed data file
//	statusrelay version                       # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bissquit/statusrelay/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "statusrelay",
	Short: "Status page backend with live websocket updates",
	Long: `statusrelay serves a status page API for services and incidents and
pushes every change to websocket viewers of the affected organization
or tenant.

Configuration comes from an optional YAML file and STATUSRELAY_*
environment variables, for example STATUSRELAY_SERVER_PORT=8080.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "statusrelay %s\n", version.Version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", version.GitCommit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", version.BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
