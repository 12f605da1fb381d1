// Package models defines data structures and domain types.
package models

import "time"

// WindowID identifies a quota window type reported by the CLI.
type WindowID string

const (
	// WindowSession is the short rolling session window.
	WindowSession WindowID = "session"
	// WindowWeekly is the weekly all-models window.
	WindowWeekly WindowID = "weekly"
	// WindowOpus is the weekly Opus-only window.
	WindowOpus WindowID = "opus"
	// WindowSonnet is the weekly Sonnet-only window.
	WindowSonnet WindowID = "sonnet"
)

// AccountType describes the subscription tier detected in CLI output.
type AccountType string

const (
	AccountPro     AccountType = "pro"
	AccountMax     AccountType = "max"
	AccountUnknown AccountType = "unknown"
)

// WindowUsage is the usage reading for a single quota window within a
// snapshot. Used and Limit are percent points: Used in [0,100], Limit 100.
type WindowUsage struct {
	WindowID WindowID  `json:"windowId"`
	Used     float64   `json:"used"`
	Limit    float64   `json:"limit"`
	ResetAt  time.Time `json:"resetAt,omitempty"`
}

// Remaining returns the unused portion of the window.
func (w WindowUsage) Remaining() float64 {
	if w.Limit < w.Used {
		return 0
	}
	return w.Limit - w.Used
}

// UsageSnapshot is one capture of the CLI's usage report. CapturedAt is the
// wall clock at invocation time, not a timestamp parsed from tool output, so
// capture ordering is monotonic regardless of tool clock skew.
type UsageSnapshot struct {
	CapturedAt  time.Time     `json:"capturedAt"`
	AccountType AccountType   `json:"accountType"`
	Email       string        `json:"email,omitempty"`
	Windows     []WindowUsage `json:"windows"`
	Raw         string        `json:"raw,omitempty"`
}

// Window returns the usage entry for the given window id, or nil.
func (s *UsageSnapshot) Window(id WindowID) *WindowUsage {
	for i := range s.Windows {
		if s.Windows[i].WindowID == id {
			return &s.Windows[i]
		}
	}
	return nil
}

// TimeBucket truncates a capture timestamp to the collection interval. The
// bucket is the idempotency key for both the archive and the normalized store.
func TimeBucket(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return t.UTC().Truncate(interval)
}
