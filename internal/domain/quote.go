package domain

import "time"

// Quote is the normalized top-of-book view of one symbol on one venue.
// A Quote is immutable once created; the price feed supersedes it with a
// newer Quote for the same (venue, symbol) key rather than mutating it.
type Quote struct {
	Venue      string
	Symbol     string
	BidPrice   float64
	AskPrice   float64
	Volume24h  float64
	ObservedAt time.Time
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}

// Mid returns the bid/ask midpoint, or zero when either side is missing.
func (q Quote) Mid() float64 {
	if q.BidPrice <= 0 || q.AskPrice <= 0 {
		return 0
	}
	return (q.BidPrice + q.AskPrice) / 2
}

// QuoteKey identifies a cache slot in the price feed.
type QuoteKey struct {
	Venue  string
	Symbol string
}

// Snapshot is a point-in-time, tear-free copy of the freshest quotes.
type Snapshot struct {
	Quotes  map[QuoteKey]Quote
	TakenAt time.Time
}

// Get returns the quote for (venue, symbol), if present.
func (s Snapshot) Get(venue, symbol string) (Quote, bool) {
	q, ok := s.Quotes[QuoteKey{Venue: venue, Symbol: symbol}]
	return q, ok
}
