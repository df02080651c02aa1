package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Snapshotter provides the feed's current quote view.
type Snapshotter interface {
	Snapshot() domain.Snapshot
}

// QuotesHandler serves the freshest quote per (venue, symbol).
type QuotesHandler struct {
	feed Snapshotter
}

// NewQuotesHandler creates a QuotesHandler over the price feed.
func NewQuotesHandler(feed Snapshotter) *QuotesHandler {
	return &QuotesHandler{feed: feed}
}

type quoteView struct {
	Venue      string  `json:"venue"`
	Symbol     string  `json:"symbol"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Volume24h  float64 `json:"volume_24h"`
	ObservedAt string  `json:"observed_at"`
	AgeMs      int64   `json:"age_ms"`
}

// List returns every cached quote, oldest venue/symbol keys first.
// GET /api/quotes
func (h *QuotesHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.feed.Snapshot()

	out := make([]quoteView, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		out = append(out, quoteView{
			Venue:      q.Venue,
			Symbol:     q.Symbol,
			Bid:        q.BidPrice,
			Ask:        q.AskPrice,
			Volume24h:  q.Volume24h,
			ObservedAt: q.ObservedAt.Format(time.RFC3339Nano),
			AgeMs:      q.Age(snap.TakenAt).Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Venue < out[j].Venue
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"taken_at": snap.TakenAt.Format(time.RFC3339Nano),
		"quotes":   out,
	})
}
