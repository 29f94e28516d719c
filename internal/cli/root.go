// Package cli implements the VibeLoop command-line interface using Cobra.
// Commands open the configured store directly; only serve starts the HTTP
// API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibeloop/vibeloop/internal/daemon"
)

var rootCmd = &cobra.Command{
	Use:   "vibeloop",
	Short: "VibeLoop: gamification engine for mood and music tracking",
	Long: `VibeLoop awards XP, levels, streaks and badges for mood logs and song plays.

Run 'vibeloop serve' for the HTTP API, or use the subcommands to record
events and inspect ledgers against the local store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// openDaemon loads config and wires every service.
var openDaemon = daemon.New

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
