// Package monitor orchestrates one collection cycle: fetch a snapshot from
// the CLI, archive it raw, then upsert the normalized rows.
package monitor

import (
	"context"
	"time"

	"github.com/j-veylop/claude-meter/internal/archive"
	"github.com/j-veylop/claude-meter/internal/collector"
	"github.com/j-veylop/claude-meter/internal/db"
	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/metrics"
	"github.com/j-veylop/claude-meter/internal/models"
)

// Runner runs collection cycles. Each cycle is a single sequential unit;
// overlap safety comes entirely from the idempotent, atomically-written
// persistence, not from locking, so an accidentally concurrent cycle
// converges to the same final state.
type Runner struct {
	collector *collector.Collector
	archive   *archive.Store
	database  *db.DB
	interval  time.Duration
	retention int
}

// New creates a cycle runner.
func New(c *collector.Collector, a *archive.Store, database *db.DB, collectInterval time.Duration, retentionDays int) *Runner {
	return &Runner{
		collector: c,
		archive:   a,
		database:  database,
		interval:  collectInterval,
		retention: retentionDays,
	}
}

// RunCycle performs one collect → archive → upsert cycle. A fetch failure
// aborts before any persistence; an archive failure aborts before the
// upsert. Both store writes are idempotent per time bucket, so a partially
// completed cycle is safe to re-run and the next scheduled cycle recovers
// naturally; there is no in-process retry.
func (r *Runner) RunCycle(ctx context.Context) (*models.UsageSnapshot, error) {
	start := time.Now()

	snapshot, err := r.collector.Collect(ctx)
	if err != nil {
		metrics.RecordCycleFailure(err)
		logger.Error("collection failed", "error", err)
		return nil, err
	}

	logger.Info("snapshot collected",
		"captured_at", snapshot.CapturedAt,
		"windows", len(snapshot.Windows),
		"account_type", snapshot.AccountType)

	if err := r.archive.Write(snapshot); err != nil {
		metrics.RecordCycleFailure(err)
		logger.Error("archive write failed", "error", err)
		return nil, err
	}

	if err := r.database.UpsertSnapshot(snapshot, r.interval); err != nil {
		// The archive entry stays; both artifacts are independently
		// idempotent, so the partial cycle is safe to re-run.
		metrics.RecordCycleFailure(err)
		logger.Error("store upsert failed", "error", err)
		return nil, err
	}

	if r.retention > 0 {
		deleted, err := r.database.CleanupOldRecords(r.retention)
		if err != nil {
			// Retention is housekeeping; a failed cleanup does not fail the cycle
			logger.Warn("retention cleanup failed", "error", err)
		} else if deleted > 0 {
			logger.Info("retention cleanup", "deleted", deleted, "older_than_days", r.retention)
		}
	}

	metrics.RecordCycleSuccess(len(snapshot.Windows), time.Since(start))
	logger.Info("cycle complete", "duration", time.Since(start))

	return snapshot, nil
}
