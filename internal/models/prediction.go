// Package models defines data structures and domain types.
package models

import "time"

// Prediction is a derived exhaustion forecast for one quota window. Rate and
// ProjectedExhaustionAt are nil when the trailing data cannot support a
// forecast; that is a degraded result, not an error.
type Prediction struct {
	WindowID WindowID  `json:"windowId"`
	AsOf     time.Time `json:"asOf"`
	// RatePerHour is the trailing burn rate in percent points per hour.
	RatePerHour *float64 `json:"ratePerHour,omitempty"`
	// ProjectedExhaustionAt is clamped to ResetAt; a value equal to ResetAt
	// means the window will not exhaust before it resets.
	ProjectedExhaustionAt *time.Time `json:"projectedExhaustionAt,omitempty"`
	ResetAt               time.Time  `json:"resetAt,omitempty"`
	CurrentUsed           float64    `json:"currentUsed"`
	Limit                 float64    `json:"limit"`
	BasisPointCount       int        `json:"basisPointCount"`
	Exhausted             bool       `json:"exhausted"`
	ClampedToReset        bool       `json:"clampedToReset"`
}

// HasForecast reports whether the prediction carries a usable projection.
func (p Prediction) HasForecast() bool {
	return p.ProjectedExhaustionAt != nil
}

// TimeToExhaustion returns the remaining time until projected exhaustion,
// or zero when there is no forecast.
func (p Prediction) TimeToExhaustion() time.Duration {
	if p.ProjectedExhaustionAt == nil {
		return 0
	}
	d := p.ProjectedExhaustionAt.Sub(p.AsOf)
	if d < 0 {
		return 0
	}
	return d
}
