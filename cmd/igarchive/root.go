package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "igarchive",
	Short: "Archive your Instagram home timeline to JSON",
	Long: `igarchive collects posts from your Instagram home timeline and
writes them to timestamped JSON archives.

Features:
  - Session reuse across runs with cheap validity probing
  - Two-factor login support
  - Cross-page deduplication and stall detection
  - Optional per-post comment capture
  - Optional concurrent media download
  - Resumable runs via checkpoints`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igarchive.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
