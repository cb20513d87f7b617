package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CatherineChiramel/Squirrel/internal/config"
	"github.com/CatherineChiramel/Squirrel/internal/report"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Report ledger statistics",
		Long: `Stats opens the configured ledger and reports how many resources are
known and how many are due for recrawl.

It reads the same backend the serve command writes, so it can run
against a live frontier or after one has stopped. Live queue figures
(pending and in-flight work) are served by the running frontier at
GET /api/v1/status instead.

Examples:
  # Report stats for the SQLite ledger
  squirrel stats --backend sqlite

  # Report stats for a shared Redis ledger as JSON
  squirrel stats --backend redis --json

  # Write a Markdown report to a file
  squirrel stats --backend sqlite --markdown -o stats.md`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	// Ledger flags
	cmd.Flags().StringP("backend", "b", config.BackendMemory,
		"Ledger backend: memory, sqlite, redis, or postgres")
	cmd.Flags().String("data-dir", "",
		"Directory for the SQLite ledger (default: XDG data directory)")
	cmd.Flags().String("redis-addr", config.DefaultRedisAddr,
		"Redis server address for the redis backend")
	cmd.Flags().String("redis-password", "",
		"Redis server password for the redis backend")
	cmd.Flags().Int("redis-db", 0,
		"Redis database number for the redis backend")
	cmd.Flags().String("postgres-dsn", "",
		"PostgreSQL connection string for the postgres backend")

	// Recrawl flags; due counts depend on the policy the ledger runs with
	cmd.Flags().Bool("recrawl", false,
		"Compute due counts with recrawling enabled")
	cmd.Flags().Duration("recrawl-ttl", config.DefaultRecrawlTTL,
		"Age after which a known resource becomes due for recrawl")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .squirrel.yaml in current directory, then XDG config)")

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildStatsConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(getVerboseFlag(cmd))
	slog.SetDefault(logger)

	return runStats(cmd.Context(), cfg, logger)
}

// buildStatsConfig creates a Config from the configuration file and the
// stats command flags.
func buildStatsConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("backend") {
		if cfg.LedgerBackend, err = flags.GetString("backend"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("data-dir") {
		if cfg.DataDir, err = flags.GetString("data-dir"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-addr") {
		if cfg.RedisAddr, err = flags.GetString("redis-addr"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-password") {
		if cfg.RedisPassword, err = flags.GetString("redis-password"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("redis-db") {
		if cfg.RedisDB, err = flags.GetInt("redis-db"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("postgres-dsn") {
		if cfg.PostgresDSN, err = flags.GetString("postgres-dsn"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("recrawl") {
		if cfg.Recrawl, err = flags.GetBool("recrawl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("recrawl-ttl") {
		if cfg.RecrawlTTL, err = flags.GetDuration("recrawl-ttl"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("json") {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("markdown") {
		if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// runStats opens the ledger, collects figures and writes the report.
func runStats(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	logger.Debug("ledger opened", "backend", cfg.LedgerBackend)

	opts := report.CollectOptions{
		Backend: cfg.LedgerBackend,
		Recrawl: cfg.Recrawl,
	}
	if cfg.Recrawl {
		opts.RecrawlTTL = cfg.RecrawlTTL
	}

	stats, err := report.Collect(ctx, led, opts)
	if err != nil {
		return err
	}

	return outputStats(cfg, stats)
}

// outputStats writes the stats report in the requested format.
func outputStats(cfg *config.Config, stats *report.Stats) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(stats)
	return err
}
