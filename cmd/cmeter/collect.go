package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-meter/internal/archive"
	"github.com/j-veylop/claude-meter/internal/collector"
	"github.com/j-veylop/claude-meter/internal/config"
	"github.com/j-veylop/claude-meter/internal/db"
	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/monitor"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection cycle",
	Long:  "Fetches the current usage report from the claude CLI, archives the raw snapshot and upserts the normalized records. Intended to be run from cron; exits non-zero when the cycle fails so the scheduler can see it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger.Setup(cfg.LogPath, slog.LevelInfo)

		database, err := db.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer database.Close()

		runner := monitor.New(
			collector.New(cfg.ClaudeBin, cfg.CollectTimeout),
			archive.New(cfg.ArchiveDir, cfg.CollectInterval),
			database,
			cfg.CollectInterval,
			cfg.RetentionDays,
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = runner.RunCycle(ctx)
		return err
	},
}
