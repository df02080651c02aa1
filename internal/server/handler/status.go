package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves engine identity and uptime for the dashboard.
type StatusHandler struct {
	Mode      string
	Venues    []string
	StartedAt time.Time
	Loop      LoopControl // optional
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, venues []string, loop LoopControl) *StatusHandler {
	return &StatusHandler{
		Mode:      mode,
		Venues:    venues,
		StartedAt: time.Now().UTC(),
		Loop:      loop,
	}
}

// GetStatus responds with the running mode, configured venues and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.Mode,
		"venues":         h.Venues,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	}
	if h.Loop != nil {
		resp["auto_execution"] = h.Loop.Enabled()
	}
	writeJSON(w, http.StatusOK, resp)
}
