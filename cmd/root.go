package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"swapflow/config"
)

var rootCmd = &cobra.Command{
	Use:   "swapflow",
	Short: "A CLI that swaps your coins into a target coin through a swap engine",
	Long: `swapflow walks a swap from coin selection to the final receipt: pick a
source coin, enter an amount, review the quote, confirm, and follow the swap
until it completes, fails or is refunded.

The swap engine is configured in .swapflow.yaml (mm2, oneclick or sim).

Examples:
  swapflow swap 0.01 BTC
  swapflow swap
  swapflow assets
  swapflow status <swap-uuid> --watch
  swapflow history --active`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// loadConfig loads the configuration and installs the default logger
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(cfg.LogLevel, verbose)
	slog.SetDefault(logger)
	return cfg, logger
}

func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
