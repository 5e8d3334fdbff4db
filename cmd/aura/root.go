package main

import (
	"github.com/spf13/cobra"
)

// Global flags
var (
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "aura",
	Short:         "Insight cache and refresh controller for time-horizon plans",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "aura.yaml", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Override log format (text, json)")

	rootCmd.AddCommand(bucketsCmd, ensureCmd, refreshCmd, showCmd, historyCmd, serveCmd)
}
