package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autoinsta",
	Short: "Incremental content harvester with credential rotation",
	Long: `AutoInsta harvests the feed, reels, stories and highlights of a set of
profiles into a per-profile archive, downloading only what the archive does
not yet hold.

Features:
  - Boundary markers per profile and stream for cheap incremental runs
  - Round-robin credential rotation, proactive and error-driven
  - Bounded retries with exponential backoff per item and per profile
  - Duplicate suppression against the media-log ledger and the archive
  - Secure credential storage using system keychain or an encrypted file`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .autoinsta.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`AutoInsta {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
