package handler

import (
	"log/slog"
	"net/http"
)

// LoopControl is what the loop handler needs from the auto-execution loop.
type LoopControl interface {
	Enabled() bool
	SetEnabled(on bool)
}

// LoopHandler toggles and reports the auto-execution loop. Disabling never
// cancels in-flight attempts; it only stops new submissions.
type LoopHandler struct {
	loop   LoopControl
	logger *slog.Logger
}

// NewLoopHandler creates a LoopHandler.
func NewLoopHandler(loop LoopControl, logger *slog.Logger) *LoopHandler {
	return &LoopHandler{loop: loop, logger: logger}
}

// GetState reports whether auto-execution is enabled.
// GET /api/loop
func (h *LoopHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"enabled": h.loop.Enabled()})
}

// Enable turns auto-execution on.
// POST /api/loop/enable
func (h *LoopHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.loop.SetEnabled(true)
	h.logger.InfoContext(r.Context(), "auto-execution enabled via api")
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true})
}

// Disable stops new attempt submissions. In-flight attempts still resolve.
// POST /api/loop/disable
func (h *LoopHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.loop.SetEnabled(false)
	h.logger.InfoContext(r.Context(), "auto-execution disabled via api")
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
}
