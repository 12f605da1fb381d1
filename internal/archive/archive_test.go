package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

func testSnapshot(capturedAt time.Time, used float64) *models.UsageSnapshot {
	return &models.UsageSnapshot{
		CapturedAt:  capturedAt,
		AccountType: models.AccountPro,
		Windows: []models.WindowUsage{
			{WindowID: models.WindowSession, Used: used, Limit: 100},
		},
	}
}

func TestEntryPath(t *testing.T) {
	store := New("/data/archive", 5*time.Minute)
	captured := time.Date(2025, 11, 3, 14, 7, 33, 0, time.UTC)

	got := store.EntryPath(captured)
	want := filepath.Join("/data/archive", "2025-11-03", "140500.json")
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestWriteAndRead(t *testing.T) {
	store := New(t.TempDir(), 5*time.Minute)
	captured := time.Date(2025, 11, 3, 14, 7, 33, 0, time.UTC)

	if err := store.Write(testSnapshot(captured, 35)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	got, err := store.Read(captured)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a snapshot")
	}
	if got.Windows[0].Used != 35 {
		t.Errorf("Expected used 35, got %v", got.Windows[0].Used)
	}
}

func TestWrite_SameBucketIsNoOp(t *testing.T) {
	store := New(t.TempDir(), 5*time.Minute)
	first := time.Date(2025, 11, 3, 14, 6, 0, 0, time.UTC)
	second := time.Date(2025, 11, 3, 14, 9, 0, 0, time.UTC)

	if err := store.Write(testSnapshot(first, 35)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	// Same 5-minute bucket; the existing entry must survive untouched
	if err := store.Write(testSnapshot(second, 99)); err != nil {
		t.Fatalf("Failed to re-write: %v", err)
	}

	got, err := store.Read(second)
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if got.Windows[0].Used != 35 {
		t.Errorf("Expected original entry to survive, got used %v", got.Windows[0].Used)
	}
}

func TestRead_Missing(t *testing.T) {
	store := New(t.TempDir(), 5*time.Minute)

	got, err := store.Read(time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Expected no error for missing entry, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil snapshot, got %+v", got)
	}
}

func TestWrite_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, 5*time.Minute)
	captured := time.Date(2025, 11, 3, 14, 7, 0, 0, time.UTC)

	if err := store.Write(testSnapshot(captured, 35)); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "2025-11-03"))
	if err != nil {
		t.Fatalf("Failed to read day dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected exactly 1 file, got %d", len(entries))
	}
	if entries[0].Name() != "140500.json" {
		t.Errorf("Expected 140500.json, got %s", entries[0].Name())
	}
}

func TestListDay(t *testing.T) {
	store := New(t.TempDir(), 5*time.Minute)
	day := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)

	for _, hour := range []int{14, 9, 12} {
		captured := day.Add(time.Duration(hour) * time.Hour)
		if err := store.Write(testSnapshot(captured, 10)); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
	}

	keys, err := store.ListDay(day)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	want := []string{"090000", "120000", "140000"}
	if len(keys) != len(want) {
		t.Fatalf("Expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Expected key %s at %d, got %s", want[i], i, keys[i])
		}
	}
}

func TestListDay_Missing(t *testing.T) {
	store := New(t.TempDir(), 5*time.Minute)

	keys, err := store.ListDay(time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Expected no error for missing day, got %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected empty list, got %v", keys)
	}
}
