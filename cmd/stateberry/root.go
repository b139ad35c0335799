package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockberries/stateberry/config"
	"github.com/blockberries/stateberry/logging"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	GitCommit = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "stateberry",
	Short: "Stateberry state machine tooling",
	Long: `Stateberry is a versioned, merkleized state store for modular
applications: height-indexed snapshots, ICS23 commitment proofs, and a
module dispatch layer with two-level commits.`,
	Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.toml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Stateberry %s\n", Version)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}

// loadConfig loads and validates the configuration file.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", cfgFile)
	}
	return config.LoadConfig(cfgFile)
}

// newLogger builds a logger from the logging config and the verbose flag.
func newLogger(cfg *config.LoggingConfig) *logging.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	if cfg.Format == "json" {
		return logging.NewJSONLogger(out, level)
	}
	return logging.NewTextLogger(out, level)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
