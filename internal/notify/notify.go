// Package notify raises desktop alerts when a quota window is projected to
// exhaust soon, or when a window reset is observed.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/models"
)

// Notifier fires at most one exhaustion alert per window epoch, so a window
// that stays critical across many cycles does not spam the desktop.
type Notifier struct {
	mu       sync.Mutex
	leadTime time.Duration
	// alerted maps window id to the reset_at of the epoch already alerted
	alerted  map[models.WindowID]time.Time
	lastUsed map[models.WindowID]float64
	sendFn   func(title, body string) error
}

// New creates a notifier that alerts when projected exhaustion falls within
// leadTime.
func New(leadTime time.Duration) *Notifier {
	if leadTime <= 0 {
		leadTime = time.Hour
	}
	return &Notifier{
		leadTime: leadTime,
		alerted:  make(map[models.WindowID]time.Time),
		lastUsed: make(map[models.WindowID]float64),
		sendFn: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
}

// Check inspects a fresh prediction and fires alerts as needed. A usage
// decrease against the previous check means the window reset, which clears
// the alert latch and announces the fresh quota.
func (n *Notifier) Check(pred models.Prediction) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prevUsed, seen := n.lastUsed[pred.WindowID]
	n.lastUsed[pred.WindowID] = pred.CurrentUsed

	if seen && pred.CurrentUsed < prevUsed {
		delete(n.alerted, pred.WindowID)
		n.send(fmt.Sprintf("Quota reset: %s", pred.WindowID),
			"The window's usage counters have reset.")
		return
	}

	if !pred.HasForecast() || pred.ClampedToReset {
		return
	}

	remaining := pred.TimeToExhaustion()
	if remaining > n.leadTime && !pred.Exhausted {
		return
	}

	if n.alerted[pred.WindowID].Equal(pred.ResetAt) {
		return
	}
	n.alerted[pred.WindowID] = pred.ResetAt

	var body string
	if pred.Exhausted {
		body = fmt.Sprintf("Usage is at %.0f%% of the limit.", pred.CurrentUsed)
	} else {
		body = fmt.Sprintf("Projected to exhaust in %s at the current rate.",
			remaining.Round(time.Minute))
	}
	n.send(fmt.Sprintf("Quota running out: %s", pred.WindowID), body)
}

func (n *Notifier) send(title, body string) {
	if err := n.sendFn(title, body); err != nil {
		logger.Warn("failed to send notification", "title", title, "error", err)
	}
}
