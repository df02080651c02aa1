package handler

import (
	"log/slog"
	"net/http"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// AttemptsHandler serves the trade ledger's recent execution attempts.
type AttemptsHandler struct {
	ledger domain.AttemptStore
	logger *slog.Logger
}

// NewAttemptsHandler creates an AttemptsHandler over the ledger.
func NewAttemptsHandler(ledger domain.AttemptStore, logger *slog.Logger) *AttemptsHandler {
	return &AttemptsHandler{ledger: ledger, logger: logger}
}

// ListRecent returns the newest execution attempts with their legs.
// GET /api/attempts?limit=50
func (h *AttemptsHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50, 500)

	attempts, err := h.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list attempts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}
