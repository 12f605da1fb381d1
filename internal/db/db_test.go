package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func testSnapshot(capturedAt time.Time, used float64, resetAt time.Time) *models.UsageSnapshot {
	return &models.UsageSnapshot{
		CapturedAt:  capturedAt,
		AccountType: models.AccountPro,
		Windows: []models.WindowUsage{
			{WindowID: models.WindowSession, Used: used, Limit: 100, ResetAt: resetAt},
			{WindowID: models.WindowWeekly, Used: used / 2, Limit: 100, ResetAt: resetAt.Add(72 * time.Hour)},
		},
	}
}

func TestNew_CreatesSchema(t *testing.T) {
	database := newTestDB(t)

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty store, got %d records", count)
	}
}

func TestUpsertSnapshot(t *testing.T) {
	database := newTestDB(t)
	captured := time.Date(2025, 11, 3, 14, 7, 0, 0, time.UTC)
	reset := captured.Add(3 * time.Hour)

	if err := database.UpsertSnapshot(testSnapshot(captured, 35, reset), 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records (one per window), got %d", count)
	}

	rec, err := database.Latest(models.WindowSession)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected a record")
	}
	if rec.Used != 35 || rec.Limit != 100 {
		t.Errorf("Expected used=35 limit=100, got %v/%v", rec.Used, rec.Limit)
	}
	wantBucket := time.Date(2025, 11, 3, 14, 5, 0, 0, time.UTC)
	if !rec.BucketTime.Equal(wantBucket) {
		t.Errorf("Expected bucket %v, got %v", wantBucket, rec.BucketTime)
	}
	if !rec.CapturedAt.Equal(captured) {
		t.Errorf("Expected captured_at %v, got %v", captured, rec.CapturedAt)
	}
	if !rec.ResetAt.Equal(reset) {
		t.Errorf("Expected reset_at %v, got %v", reset, rec.ResetAt)
	}
	if rec.RawPayload == "" {
		t.Error("Expected raw payload to be stored")
	}
}

func TestUpsertSnapshot_SameBucketLastWriteWins(t *testing.T) {
	database := newTestDB(t)
	reset := time.Date(2025, 11, 3, 18, 0, 0, 0, time.UTC)
	first := time.Date(2025, 11, 3, 14, 6, 0, 0, time.UTC)
	second := time.Date(2025, 11, 3, 14, 9, 0, 0, time.UTC)

	if err := database.UpsertSnapshot(testSnapshot(first, 35, reset), 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	// Same 5-minute bucket: the row is replaced, not duplicated
	if err := database.UpsertSnapshot(testSnapshot(second, 38, reset), 5*time.Minute); err != nil {
		t.Fatalf("Failed to re-upsert: %v", err)
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records after re-upsert, got %d", count)
	}

	rec, err := database.Latest(models.WindowSession)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if rec.Used != 38 {
		t.Errorf("Expected last write to win with used=38, got %v", rec.Used)
	}
	if !rec.CapturedAt.Equal(second) {
		t.Errorf("Expected captured_at %v, got %v", second, rec.CapturedAt)
	}
}

func TestListRecords_OrderedAscending(t *testing.T) {
	database := newTestDB(t)
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	reset := base.Add(8 * time.Hour)

	for i, used := range []float64{40, 45, 52} {
		captured := base.Add(time.Duration(i*5) * time.Minute)
		if err := database.UpsertSnapshot(testSnapshot(captured, used, reset), 5*time.Minute); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	records, err := database.ListRecords(models.WindowSession, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if !records[i].CapturedAt.After(records[i-1].CapturedAt) {
			t.Errorf("Expected ascending order, got %v before %v",
				records[i-1].CapturedAt, records[i].CapturedAt)
		}
	}
	if records[0].Used != 40 || records[2].Used != 52 {
		t.Errorf("Expected used 40..52, got %v..%v", records[0].Used, records[2].Used)
	}
}

func TestListRecords_RangeFilter(t *testing.T) {
	database := newTestDB(t)
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	reset := base.Add(8 * time.Hour)

	for i := 0; i < 4; i++ {
		captured := base.Add(time.Duration(i) * time.Hour)
		if err := database.UpsertSnapshot(testSnapshot(captured, float64(40+i), reset), 5*time.Minute); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	records, err := database.ListRecords(models.WindowSession, base.Add(time.Hour), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 records in range, got %d", len(records))
	}
}

func TestLatest_NoData(t *testing.T) {
	database := newTestDB(t)

	rec, err := database.Latest(models.WindowSession)
	if err != nil {
		t.Fatalf("Expected no error for empty window, got %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil record, got %+v", rec)
	}
}

func TestLatestN(t *testing.T) {
	database := newTestDB(t)
	base := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	reset := base.Add(8 * time.Hour)

	for i := 0; i < 5; i++ {
		captured := base.Add(time.Duration(i*5) * time.Minute)
		if err := database.UpsertSnapshot(testSnapshot(captured, float64(40+i), reset), 5*time.Minute); err != nil {
			t.Fatalf("Failed to upsert: %v", err)
		}
	}

	records, err := database.LatestN(models.WindowSession, base.Add(time.Hour), 3)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	// Newest first
	if records[0].Used != 44 || records[2].Used != 42 {
		t.Errorf("Expected newest-first 44..42, got %v..%v", records[0].Used, records[2].Used)
	}

	// asOf bounds the result
	bounded, err := database.LatestN(models.WindowSession, base.Add(7*time.Minute), 10)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if len(bounded) != 2 {
		t.Errorf("Expected 2 records at or before asOf, got %d", len(bounded))
	}
}

func TestWindows(t *testing.T) {
	database := newTestDB(t)
	captured := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)

	ids, err := database.Windows()
	if err != nil {
		t.Fatalf("Failed to list windows: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no windows in empty store, got %v", ids)
	}

	if err := database.UpsertSnapshot(testSnapshot(captured, 35, captured.Add(time.Hour)), 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	ids, err = database.Windows()
	if err != nil {
		t.Fatalf("Failed to list windows: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 windows, got %v", ids)
	}
}

func TestCleanupOldRecords(t *testing.T) {
	database := newTestDB(t)
	now := time.Now().UTC()
	reset := now.Add(8 * time.Hour)

	old := testSnapshot(now.AddDate(0, 0, -10), 35, reset)
	recent := testSnapshot(now, 40, reset)
	if err := database.UpsertSnapshot(old, 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := database.UpsertSnapshot(recent, 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	deleted, err := database.CleanupOldRecords(7)
	if err != nil {
		t.Fatalf("Failed to cleanup: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 deleted rows, got %d", deleted)
	}

	count, err := database.RecordCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 surviving records, got %d", count)
	}
}

func TestNullResetAt(t *testing.T) {
	database := newTestDB(t)
	captured := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)

	snapshot := &models.UsageSnapshot{
		CapturedAt: captured,
		Windows: []models.WindowUsage{
			{WindowID: models.WindowSession, Used: 35, Limit: 100},
		},
	}
	if err := database.UpsertSnapshot(snapshot, 5*time.Minute); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	rec, err := database.Latest(models.WindowSession)
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if !rec.ResetAt.IsZero() {
		t.Errorf("Expected zero reset_at, got %v", rec.ResetAt)
	}
}
