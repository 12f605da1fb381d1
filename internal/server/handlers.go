package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/j-veylop/claude-meter/internal/logger"
	"github.com/j-veylop/claude-meter/internal/models"
)

// recordView is the wire shape of a usage record. The raw payload is
// omitted; the archive serves raw access.
type recordView struct {
	WindowID   models.WindowID `json:"windowId"`
	BucketTime time.Time       `json:"bucketTime"`
	CapturedAt time.Time       `json:"capturedAt"`
	Used       float64         `json:"used"`
	Limit      float64         `json:"limit"`
	ResetAt    *time.Time      `json:"resetAt,omitempty"`
}

func toRecordView(rec models.UsageRecord) recordView {
	v := recordView{
		WindowID:   rec.WindowID,
		BucketTime: rec.BucketTime,
		CapturedAt: rec.CapturedAt,
		Used:       rec.Used,
		Limit:      rec.Limit,
	}
	if !rec.ResetAt.IsZero() {
		reset := rec.ResetAt
		v.ResetAt = &reset
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.database.RecordCount()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "records": count})
}

// handleCurrent returns the most recent record for every known window.
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	windows, err := s.database.Windows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list windows")
		return
	}

	current := make(map[models.WindowID]recordView)
	for _, id := range windows {
		rec, err := s.database.Latest(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read latest record")
			return
		}
		if rec != nil {
			current[id] = toRecordView(*rec)
		}
	}

	writeJSON(w, current)
}

// handleHistory returns records for one window over a trailing time range.
// Absent data yields an empty list, not an error.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	windowID, ok := windowParam(w, r)
	if !ok {
		return
	}
	hours := intParam(r, "hours", 168)

	now := time.Now().UTC()
	records, err := s.database.ListRecords(windowID, now.Add(-time.Duration(hours)*time.Hour), now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, toRecordView(rec))
	}
	writeJSON(w, views)
}

// handleAggregate returns per-bucket deltas for one window.
func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	windowID, ok := windowParam(w, r)
	if !ok {
		return
	}
	hours := intParam(r, "hours", 24)

	bucket := time.Hour
	if v := r.URL.Query().Get("bucket"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid bucket duration")
			return
		}
		bucket = d
	}

	now := time.Now().UTC()
	aggregates, err := s.aggregator.Aggregate(windowID, now.Add(-time.Duration(hours)*time.Hour), now, bucket)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate")
		return
	}

	writeJSON(w, aggregates)
}

// handlePrediction returns exhaustion forecasts. Without a window parameter
// it covers every known window; an unpredictable window renders with null
// rate and projection, never as an error.
func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	if v := r.URL.Query().Get("window"); v != "" {
		pred, err := s.predictor.Predict(models.WindowID(v), now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to predict")
			return
		}
		writeJSON(w, pred)
		return
	}

	windows, err := s.database.Windows()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list windows")
		return
	}

	predictions := make(map[models.WindowID]models.Prediction)
	for _, id := range windows {
		pred, err := s.predictor.Predict(id, now)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to predict")
			return
		}
		predictions[id] = pred
	}

	writeJSON(w, predictions)
}

// windowParam extracts the required window query parameter.
func windowParam(w http.ResponseWriter, r *http.Request) (models.WindowID, bool) {
	v := r.URL.Query().Get("window")
	if v == "" {
		writeError(w, http.StatusBadRequest, "missing window parameter")
		return "", false
	}
	return models.WindowID(v), true
}

func intParam(r *http.Request, name string, defaultValue int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
