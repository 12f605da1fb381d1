// Package models defines data structures and domain types.
package models

import "time"

// UsageRecord is one normalized time-series row: a single quota window
// reading keyed by (bucket_time, window_id). RawPayload holds the verbatim
// snapshot JSON for audit.
type UsageRecord struct {
	ID         int64
	BucketTime time.Time
	WindowID   WindowID
	CapturedAt time.Time
	Used       float64
	Limit      float64
	ResetAt    time.Time
	RawPayload string
}

// Exhausted reports whether the window had no quota left at capture time.
func (r UsageRecord) Exhausted() bool {
	return r.Used >= r.Limit
}

// SameEpoch reports whether two records belong to the same quota window
// epoch. A changed reset_at or a usage decrease marks an epoch boundary;
// any such change is treated as a reset, never as negative consumption.
func (r UsageRecord) SameEpoch(prev UsageRecord) bool {
	if !r.ResetAt.Equal(prev.ResetAt) {
		return false
	}
	return r.Used >= prev.Used
}
