package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"equities-trading-bot/config"
	"equities-trading-bot/internal/autopilot"
	"equities-trading-bot/internal/database"
	"equities-trading-bot/internal/events"
)

// errWorkflowFailed makes one-shot commands exit non-zero on StatusError
var errWorkflowFailed = fmt.Errorf("workflow finished with status %s", autopilot.StatusError)

// withApp loads config, builds the app and runs fn against it
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printResult(w io.Writer, res *autopilot.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Status == autopilot.StatusError {
		return errWorkflowFailed
	}
	return nil
}

// workflowCmd builds a one-shot command around a single workflow method
func workflowCmd(use, short string, run func(w *autopilot.Workflow, ctx context.Context) *autopilot.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printResult(cmd.OutOrStdout(), run(a.workflow, ctx))
			})
		},
	}
}

func scanCmd() *cobra.Command {
	return workflowCmd("scan", "Run one scan-and-trade cycle", (*autopilot.Workflow).ScanAndTrade)
}

func monitorCmd() *cobra.Command {
	return workflowCmd("monitor", "Run one monitor-and-exit cycle", (*autopilot.Workflow).MonitorAndExit)
}

func emergencyStopCmd() *cobra.Command {
	return workflowCmd("emergency-stop", "Pause trading and close every open position", (*autopilot.Workflow).EmergencyStop)
}

func resumeCmd() *cobra.Command {
	return workflowCmd("resume", "Clear the paused flag", (*autopilot.Workflow).Resume)
}

func tradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trade SYMBOL",
		Short: "Analyze and trade a single symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return printResult(cmd.OutOrStdout(), a.workflow.ManualTrade(ctx, symbol))
			})
		},
	}
}

func resetBreakerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-breaker",
		Short: "Clear a tripped daily loss circuit breaker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.workflow.ResetCircuitBreaker(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Circuit breaker reset")
				return nil
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return fmt.Errorf("database is disabled in configuration")
			}

			ctx := cmd.Context()
			db, err := database.NewDB(ctx, cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := db.RunMigrations(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func sampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config [PATH]",
		Short: "Write a sample configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.GenerateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", filepath.Clean(path))
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scan and monitor loops with the HTTP control surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			serverErr := make(chan error, 1)
			server := a.newServer()
			if cfg.Server.Enabled {
				go func() { serverErr <- server.Start() }()
			}

			if !cfg.Trading.AutoTradingEnabled {
				logger.Warn().Msg("Auto trading disabled: scans report signals only, exits are still managed")
			}
			if err := a.runner.Start(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				logger.Info().Msg("Shutting down...")
			case err := <-serverErr:
				if err != nil {
					logger.Error().Err(err).Msg("HTTP server stopped")
				}
			}

			a.bus.Publish(events.Event{
				Type: events.EventStateChanged,
				Data: map[string]interface{}{"state": "STOPPED"},
			})

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if cfg.Server.Enabled {
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down web server")
				}
			}
			a.runner.Stop()

			logger.Info().Msg("Shutdown complete")
			return nil
		},
	}
}
