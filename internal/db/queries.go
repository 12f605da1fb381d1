package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

// StoreError wraps persistence write failures so callers can distinguish
// them from fetch or archive failures.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// timeFormat matches SQLite's datetime() output so stored values stay
// compatible with SQLite date functions.
const timeFormat = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTimeString(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// UpsertSnapshot writes one usage_records row per quota window in the
// snapshot, keyed by (window_id, bucket_time). A re-run within the same
// bucket replaces the prior row (last-write-wins), so corrected data
// supersedes a partial earlier cycle.
func (db *DB) UpsertSnapshot(snapshot *models.UsageSnapshot, interval time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return &StoreError{Op: "upsert", Err: fmt.Errorf("failed to marshal snapshot: %w", err)}
	}

	bucket := models.TimeBucket(snapshot.CapturedAt, interval)

	query := `
		INSERT INTO usage_records (
			bucket_time, window_id, captured_at, used, usage_limit, reset_at, raw_payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(window_id, bucket_time) DO UPDATE SET
			captured_at = excluded.captured_at,
			used = excluded.used,
			usage_limit = excluded.usage_limit,
			reset_at = excluded.reset_at,
			raw_payload = excluded.raw_payload
	`

	for _, w := range snapshot.Windows {
		_, err := db.ExecContext(context.Background(), query,
			formatTime(bucket),
			string(w.WindowID),
			formatTime(snapshot.CapturedAt),
			w.Used,
			w.Limit,
			nullTime(w.ResetAt),
			string(payload),
		)
		if err != nil {
			return &StoreError{Op: "upsert", Err: fmt.Errorf("window %s: %w", w.WindowID, err)}
		}
	}

	return nil
}

// ListRecords returns all records for a window in [from, to], ordered by
// captured_at ascending.
func (db *DB) ListRecords(windowID models.WindowID, from, to time.Time) ([]models.UsageRecord, error) {
	query := `
		SELECT id, bucket_time, window_id, captured_at, used, usage_limit, reset_at, raw_payload
		FROM usage_records
		WHERE window_id = ? AND captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC
	`

	rows, err := db.QueryContext(context.Background(), query,
		string(windowID), formatTime(from), formatTime(to))
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Latest returns the most recent record for a window, or nil when the
// window has no data.
func (db *DB) Latest(windowID models.WindowID) (*models.UsageRecord, error) {
	query := `
		SELECT id, bucket_time, window_id, captured_at, used, usage_limit, reset_at, raw_payload
		FROM usage_records
		WHERE window_id = ?
		ORDER BY captured_at DESC
		LIMIT 1
	`

	row := db.QueryRowContext(context.Background(), query, string(windowID))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "latest", Err: err}
	}
	return rec, nil
}

// LatestN returns up to n records for a window with captured_at <= asOf,
// most recent first.
func (db *DB) LatestN(windowID models.WindowID, asOf time.Time, n int) ([]models.UsageRecord, error) {
	query := `
		SELECT id, bucket_time, window_id, captured_at, used, usage_limit, reset_at, raw_payload
		FROM usage_records
		WHERE window_id = ? AND captured_at <= ?
		ORDER BY captured_at DESC
		LIMIT ?
	`

	rows, err := db.QueryContext(context.Background(), query,
		string(windowID), formatTime(asOf), n)
	if err != nil {
		return nil, &StoreError{Op: "latest-n", Err: err}
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

// Windows returns the distinct window ids present in the store.
func (db *DB) Windows() ([]models.WindowID, error) {
	rows, err := db.QueryContext(context.Background(),
		"SELECT DISTINCT window_id FROM usage_records ORDER BY window_id")
	if err != nil {
		return nil, &StoreError{Op: "windows", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var ids []models.WindowID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StoreError{Op: "windows", Err: err}
		}
		ids = append(ids, models.WindowID(id))
	}
	return ids, rows.Err()
}

// RecordCount returns the total number of stored records.
func (db *DB) RecordCount() (int, error) {
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM usage_records").Scan(&count)
	if err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return count, nil
}

// CleanupOldRecords deletes records older than the given number of days and
// returns the number of rows removed.
func (db *DB) CleanupOldRecords(olderThanDays int) (int64, error) {
	query := `DELETE FROM usage_records WHERE captured_at < datetime('now', ?)`
	windowStr := fmt.Sprintf("-%d days", olderThanDays)

	result, err := db.ExecContext(context.Background(), query, windowStr)
	if err != nil {
		return 0, &StoreError{Op: "cleanup", Err: err}
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.UsageRecord, error) {
	var rec models.UsageRecord
	var bucketStr, capturedStr string
	var resetStr, payload sql.NullString
	var windowID string

	err := row.Scan(
		&rec.ID,
		&bucketStr,
		&windowID,
		&capturedStr,
		&rec.Used,
		&rec.Limit,
		&resetStr,
		&payload,
	)
	if err != nil {
		return nil, err
	}

	rec.WindowID = models.WindowID(windowID)
	if t, ok := parseTimeString(bucketStr); ok {
		rec.BucketTime = t
	}
	if t, ok := parseTimeString(capturedStr); ok {
		rec.CapturedAt = t
	}
	if resetStr.Valid {
		if t, ok := parseTimeString(resetStr.String); ok {
			rec.ResetAt = t
		}
	}
	rec.RawPayload = payload.String

	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// nullTime returns a NULL column value for zero times.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}
