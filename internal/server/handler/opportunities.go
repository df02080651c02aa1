package handler

import (
	"net/http"

	"github.com/arbcorelabs/arbcore/internal/detector"
)

// OpportunitiesHandler runs detection on demand against the live snapshot so
// operators can see what the engine currently considers a candidate. It is
// read-only; nothing is submitted for execution from here.
type OpportunitiesHandler struct {
	feed   Snapshotter
	params detector.Params
}

// NewOpportunitiesHandler creates an OpportunitiesHandler.
func NewOpportunitiesHandler(feed Snapshotter, params detector.Params) *OpportunitiesHandler {
	return &OpportunitiesHandler{feed: feed, params: params}
}

// List returns the opportunities detectable in the current snapshot, before
// ranking, so filtered-out candidates stay visible for threshold tuning.
// GET /api/opportunities
func (h *OpportunitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.feed.Snapshot()
	ops := detector.Detect(snap, h.params)
	writeJSON(w, http.StatusOK, map[string]any{
		"taken_at":      snap.TakenAt,
		"opportunities": ops,
	})
}
