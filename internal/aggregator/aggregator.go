// Package aggregator reduces stored usage records into per-bucket deltas,
// detecting quota resets and collection gaps along the way.
package aggregator

import (
	"fmt"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

// RecordLister is the read-only store access the aggregator needs.
type RecordLister interface {
	ListRecords(windowID models.WindowID, from, to time.Time) ([]models.UsageRecord, error)
}

// Aggregator derives usage deltas from the normalized store. It never
// mutates stored rows; every call recomputes from a point-in-time read.
type Aggregator struct {
	store RecordLister
	// interval is the nominal collection interval; a spacing of more than
	// twice this between consecutive samples flags a gap.
	interval time.Duration
}

// New creates an aggregator over the given store.
func New(store RecordLister, collectInterval time.Duration) *Aggregator {
	if collectInterval <= 0 {
		collectInterval = 5 * time.Minute
	}
	return &Aggregator{store: store, interval: collectInterval}
}

// Aggregate reduces the records for a window in [from, to) into buckets of
// bucketWidth. The result always covers the full range: buckets without
// samples are reported with a zero delta and no flags, never omitted, so
// consumers get a complete sequence for charting.
//
// Walking consecutive sample pairs:
//   - a changed reset_at or a usage decrease marks a new epoch; the bucket
//     containing the later sample is flagged had_reset and the pair
//     contributes curr.used (usage accrued since the epoch began)
//   - a spacing of more than twice the collection interval flags had_gap;
//     the delta still comes from the raw counters, never interpolation
//   - otherwise the pair contributes curr.used - prev.used
func (a *Aggregator) Aggregate(windowID models.WindowID, from, to time.Time, bucketWidth time.Duration) ([]models.Aggregate, error) {
	if bucketWidth <= 0 {
		return nil, fmt.Errorf("bucket width must be positive, got %s", bucketWidth)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("invalid range: from %s is not before to %s", from, to)
	}

	from = from.UTC()
	to = to.UTC()

	records, err := a.store.ListRecords(windowID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	start := from.Truncate(bucketWidth)
	buckets := makeBuckets(windowID, start, to, bucketWidth)

	bucketFor := func(t time.Time) *models.Aggregate {
		idx := int(t.Sub(start) / bucketWidth)
		if idx < 0 || idx >= len(buckets) {
			return nil
		}
		return &buckets[idx]
	}

	for i := range records {
		if b := bucketFor(records[i].CapturedAt); b != nil {
			b.SampleCount++
		}
	}

	for i := 1; i < len(records); i++ {
		prev, curr := records[i-1], records[i]

		b := bucketFor(curr.CapturedAt)
		if b == nil {
			continue
		}

		if !curr.SameEpoch(prev) {
			// Usage accrued since the new epoch began, never a negative delta
			b.DeltaUsed += curr.Used
			b.HadReset = true
		} else {
			b.DeltaUsed += curr.Used - prev.Used
		}

		if curr.CapturedAt.Sub(prev.CapturedAt) > 2*a.interval {
			b.HadGap = true
		}
	}

	return buckets, nil
}

// makeBuckets lays out empty buckets covering [start, to).
func makeBuckets(windowID models.WindowID, start, to time.Time, width time.Duration) []models.Aggregate {
	n := int((to.Sub(start) + width - 1) / width)
	if n < 1 {
		n = 1
	}

	buckets := make([]models.Aggregate, n)
	for i := range buckets {
		bucketStart := start.Add(time.Duration(i) * width)
		buckets[i] = models.Aggregate{
			WindowID:    windowID,
			BucketStart: bucketStart,
			BucketEnd:   bucketStart.Add(width),
		}
	}
	return buckets
}
