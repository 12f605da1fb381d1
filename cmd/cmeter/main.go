// Package main is the entry point for the claude-meter CLI. A cron-driven
// collect subcommand feeds the store; serve exposes the read-only dashboard
// API; predict prints current exhaustion forecasts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-meter/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "cmeter",
	Short:         "Monitor Claude CLI quota usage over time",
	Long:          "cmeter collects usage snapshots from the claude CLI, keeps a raw archive and a normalized time series, and projects when each quota window will be exhausted.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Info())
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
