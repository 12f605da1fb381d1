// Package predictor projects quota exhaustion from the trailing burn rate
// of stored usage records.
package predictor

import (
	"fmt"
	"math"
	"time"

	"github.com/j-veylop/claude-meter/internal/models"
)

// DefaultSampleCount is the trailing window size used when none is
// configured.
const DefaultSampleCount = 6

// RecordFetcher is the read-only store access the predictor needs.
type RecordFetcher interface {
	LatestN(windowID models.WindowID, asOf time.Time, n int) ([]models.UsageRecord, error)
}

// Predictor derives exhaustion forecasts from a trailing sample window. It
// is a read-only consumer of the store and degrades to "no forecast" on
// insufficient or flat data instead of failing.
type Predictor struct {
	store   RecordFetcher
	samples int
}

// New creates a predictor using up to sampleCount trailing records.
func New(store RecordFetcher, sampleCount int) *Predictor {
	if sampleCount < 2 {
		sampleCount = DefaultSampleCount
	}
	return &Predictor{store: store, samples: sampleCount}
}

// Predict projects when the window exhausts its quota, based on the most
// recent qualifying records at or before asOf. Records from a prior epoch
// are excluded: a reset invalidates the trailing rate, so the sample window
// is truncated at the first epoch boundary walking backward from the latest
// record. The projection is clamped to the window's reset time; a result
// equal to reset_at means the window will not exhaust before it resets.
//
// The returned error only reflects store access failure; thin or flat data
// yields a Prediction without a forecast, never an error.
func (p *Predictor) Predict(windowID models.WindowID, asOf time.Time) (models.Prediction, error) {
	asOf = asOf.UTC()
	pred := models.Prediction{WindowID: windowID, AsOf: asOf}

	recent, err := p.store.LatestN(windowID, asOf, p.samples)
	if err != nil {
		return pred, fmt.Errorf("failed to fetch records: %w", err)
	}
	if len(recent) == 0 {
		return pred, nil
	}

	// recent is newest-first; keep only the current epoch
	points := currentEpoch(recent)
	latest := points[len(points)-1]

	pred.BasisPointCount = len(points)
	pred.CurrentUsed = latest.Used
	pred.Limit = latest.Limit
	pred.ResetAt = latest.ResetAt

	if len(points) < 2 {
		return pred, nil
	}

	rate := slope(points) // used per second
	ratePerHour := rate * 3600
	pred.RatePerHour = &ratePerHour

	if latest.Used >= latest.Limit {
		pred.Exhausted = true
		exhaustion := asOf
		pred.ProjectedExhaustionAt = &exhaustion
		return pred, nil
	}

	if rate <= 0 {
		return pred, nil
	}

	secondsLeft := (latest.Limit - latest.Used) / rate
	exhaustion := asOf.Add(time.Duration(secondsLeft * float64(time.Second)))

	if !latest.ResetAt.IsZero() && exhaustion.After(latest.ResetAt) {
		exhaustion = latest.ResetAt
		pred.ClampedToReset = true
	}

	pred.ProjectedExhaustionAt = &exhaustion
	return pred, nil
}

// currentEpoch truncates a newest-first record list at the first epoch
// boundary and returns the surviving records oldest-first.
func currentEpoch(recent []models.UsageRecord) []models.UsageRecord {
	end := len(recent)
	for i := 1; i < len(recent); i++ {
		// recent[i] precedes recent[i-1] in time
		if !recent[i-1].SameEpoch(recent[i]) {
			end = i
			break
		}
	}

	points := make([]models.UsageRecord, end)
	for i := 0; i < end; i++ {
		points[i] = recent[end-1-i]
	}
	return points
}

// slope computes the usage growth rate in units per second over the points:
// a least-squares fit for three or more points, the plain two-point slope
// for exactly two.
func slope(points []models.UsageRecord) float64 {
	first := points[0]
	last := points[len(points)-1]

	span := last.CapturedAt.Sub(first.CapturedAt).Seconds()
	if span <= 0 {
		return 0
	}

	if len(points) == 2 {
		return (last.Used - first.Used) / span
	}

	// Least-squares fit of used = a*t + b with t relative to the first sample
	var n, sumT, sumU, sumTU, sumT2 float64
	n = float64(len(points))
	for _, pt := range points {
		t := pt.CapturedAt.Sub(first.CapturedAt).Seconds()
		sumT += t
		sumU += pt.Used
		sumTU += t * pt.Used
		sumT2 += t * t
	}

	denom := n*sumT2 - sumT*sumT
	if math.Abs(denom) < 1e-10 {
		return 0
	}
	return (n*sumTU - sumT*sumU) / denom
}
