package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-meter/internal/archive"
	"github.com/j-veylop/claude-meter/internal/collector"
	"github.com/j-veylop/claude-meter/internal/db"
)

const toolOutput = `Claude Pro · user@example.com

Current session
35%% used
Resets 3h 45m

Current week (all models)
60%% used
Resets Nov 6, 4pm`

func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("Failed to write fake tool: %v", err)
	}
	return path
}

func newTestRunner(t *testing.T, script string) (*Runner, *archive.Store, *db.DB) {
	t.Helper()
	tmpDir := t.TempDir()

	database, err := db.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	store := archive.New(filepath.Join(tmpDir, "archive"), 5*time.Minute)
	c := collector.New(fakeTool(t, script), 10*time.Second)
	return New(c, store, database, 5*time.Minute, 0), store, database
}

func TestRunCycle(t *testing.T) {
	runner, store, database := newTestRunner(t, `printf '`+toolOutput+`\n'`)

	snapshot, err := runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("Failed to run cycle: %v", err)
	}
	if len(snapshot.Windows) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(snapshot.Windows))
	}

	// Raw archive entry exists
	archived, err := store.Read(snapshot.CapturedAt)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if archived == nil {
		t.Fatal("Expected an archive entry")
	}
	if archived.Email != "user@example.com" {
		t.Errorf("Expected archived email, got %q", archived.Email)
	}

	// Normalized rows exist
	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records, got %d", count)
	}
}

func TestRunCycle_RerunIsIdempotent(t *testing.T) {
	runner, _, database := newTestRunner(t, `printf '`+toolOutput+`\n'`)

	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("Failed to run cycle: %v", err)
	}
	if _, err := runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("Failed to re-run cycle: %v", err)
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected re-run within the bucket to not duplicate rows, got %d", count)
	}
}

func TestRunCycle_FetchFailureHasNoSideEffects(t *testing.T) {
	runner, store, database := newTestRunner(t, "exit 1")

	if _, err := runner.RunCycle(context.Background()); err == nil {
		t.Fatal("Expected cycle failure")
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no records after failed fetch, got %d", count)
	}

	entries, err := os.ReadDir(store.Dir())
	if err == nil && len(entries) != 0 {
		t.Errorf("Expected empty archive after failed fetch, got %d entries", len(entries))
	}
}

func TestRunCycle_ParseFailureAborts(t *testing.T) {
	runner, _, database := newTestRunner(t, `echo "Welcome to Claude"`)

	if _, err := runner.RunCycle(context.Background()); err == nil {
		t.Fatal("Expected cycle failure")
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no records after parse failure, got %d", count)
	}
}
