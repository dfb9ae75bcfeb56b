package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"equities-trading-bot/config"
	"equities-trading-bot/internal/logging"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "equities-trading-bot",
		Short: "Automated equities and options trading controller",
		Long: `equities-trading-bot scans a watchlist, turns strategy and LLM opinions
into risk-checked stock or option orders, and manages open positions
until they exit.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.yaml or .json, defaults to CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(monitorCmd())
	rootCmd.AddCommand(tradeCmd())
	rootCmd.AddCommand(emergencyStopCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(resetBreakerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sampleConfigCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the process logger
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(&cfg.Logging)
	logging.SetDefault(logger)
	return cfg, logger, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "equities-trading-bot version %s\n", version)
		},
	}
}
