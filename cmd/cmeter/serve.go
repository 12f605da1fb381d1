package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/claude-meter/internal/aggregator"
	"github.com/j-veylop/claude-meter/internal/config"
	"github.com/j-veylop/claude-meter/internal/db"
	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/notify"
	"github.com/j-veylop/claude-meter/internal/predictor"
	"github.com/j-veylop/claude-meter/internal/server"
	"github.com/j-veylop/claude-meter/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API",
	Long:  "Serves the read-only query API and watches the archive directory for new captures. Each new capture refreshes the exhaustion forecasts and raises desktop alerts when a window is about to run out.",
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

		agg := aggregator.New(database, cfg.CollectInterval)
		pred := predictor.New(database, cfg.PredictionSamples)
		srv := server.New(cfg.ListenAddr, database, agg, pred)

		archiveWatcher, err := watcher.New(cfg.ArchiveDir)
		if err != nil {
			return err
		}
		defer archiveWatcher.Close()

		notifier := notify.New(cfg.AlertLeadTime)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.ListenAndServe()
		}()

		go watchCaptures(ctx, archiveWatcher, database, pred, notifier)

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// watchCaptures refreshes forecasts whenever the external collector lands a
// new archive entry.
func watchCaptures(ctx context.Context, w *watcher.Watcher, database *db.DB, pred *predictor.Predictor, notifier *notify.Notifier) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events():
			if !ok {
				return
			}
			logger.Debug("new capture observed", "path", event.Path)

			windows, err := database.Windows()
			if err != nil {
				logger.Error("failed to list windows", "error", err)
				continue
			}
			for _, id := range windows {
				p, err := pred.Predict(id, time.Now().UTC())
				if err != nil {
					logger.Error("prediction failed", "window", id, "error", err)
					continue
				}
				notifier.Check(p)
			}
		}
	}
}
