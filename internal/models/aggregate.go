// Package models defines data structures and domain types.
package models

import "time"

// Aggregate is one derived per-bucket usage delta. Aggregates are computed
// on demand from UsageRecords and never persisted.
type Aggregate struct {
	WindowID    WindowID  `json:"windowId"`
	BucketStart time.Time `json:"bucketStart"`
	BucketEnd   time.Time `json:"bucketEnd"`
	DeltaUsed   float64   `json:"deltaUsed"`
	SampleCount int       `json:"sampleCount"`
	HadGap      bool      `json:"hadGap"`
	HadReset    bool      `json:"hadReset"`
}
