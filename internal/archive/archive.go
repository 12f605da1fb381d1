// Package archive persists raw usage snapshots as immutable,
// path-addressed JSON files, one per collection cycle.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "150405"
)

// ArchiveError wraps raw archive write/read failures.
type ArchiveError struct {
	Path string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Path, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// Store writes one snapshot file per collection cycle under
// <dir>/<date>/<time-of-day>.json, keyed by the capture time truncated to
// the collection interval. Entries are never rewritten once created.
type Store struct {
	dir      string
	interval time.Duration
}

// New creates an archive store rooted at dir.
func New(dir string, interval time.Duration) *Store {
	return &Store{dir: dir, interval: interval}
}

// Dir returns the archive root directory.
func (s *Store) Dir() string {
	return s.dir
}

// EntryPath returns the archive file path for a capture time.
func (s *Store) EntryPath(capturedAt time.Time) string {
	bucket := models.TimeBucket(capturedAt, s.interval)
	return filepath.Join(s.dir, bucket.Format(dateLayout), bucket.Format(timeLayout)+".json")
}

// Write persists the snapshot verbatim to its bucket-keyed path. An existing
// entry for the same bucket makes the write a no-op, not an error, so a
// re-run within the same collection interval is safe. The write is atomic:
// data goes to a temp file first and is renamed into place, so readers never
// observe a partial entry.
func (s *Store) Write(snapshot *models.UsageSnapshot) error {
	path := s.EntryPath(snapshot.CapturedAt)

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return &ArchiveError{Path: path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ArchiveError{Path: path, Err: err}
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return &ArchiveError{Path: path, Err: fmt.Errorf("failed to marshal snapshot: %w", err)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &ArchiveError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &ArchiveError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &ArchiveError{Path: path, Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return &ArchiveError{Path: path, Err: err}
	}

	return nil
}

// Read loads the archived snapshot for a capture time, or nil when no entry
// exists for its bucket.
func (s *Store) Read(capturedAt time.Time) (*models.UsageSnapshot, error) {
	path := s.EntryPath(capturedAt)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &ArchiveError{Path: path, Err: err}
	}

	var snapshot models.UsageSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &ArchiveError{Path: path, Err: fmt.Errorf("failed to unmarshal snapshot: %w", err)}
	}

	return &snapshot, nil
}

// ListDay returns the time-of-day keys archived for a given date, sorted
// ascending. Missing days return an empty list.
func (s *Store) ListDay(date time.Time) ([]string, error) {
	dayDir := filepath.Join(s.dir, date.UTC().Format(dateLayout))

	entries, err := os.ReadDir(dayDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &ArchiveError{Path: dayDir, Err: err}
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)

	return keys, nil
}
