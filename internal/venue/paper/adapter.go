// Package paper implements an in-memory venue for dry runs. Orders fill
// instantly at the quoted price unless a behavior override says otherwise.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/venue"
)

// Behavior scripts how the venue responds to an order on one symbol/side.
type Behavior int

const (
	// Fill executes the full requested quantity at the quoted price.
	Fill Behavior = iota
	// Reject refuses the order.
	Reject
	// Hang blocks until the caller's context expires.
	Hang
)

type behaviorKey struct {
	symbol string
	side   domain.Side
}

// Adapter is a deterministic in-memory venue.
type Adapter struct {
	name        string
	takerFeePct float64

	mu        sync.Mutex
	quotes    map[string]domain.Quote
	behaviors map[behaviorKey]Behavior
	latency   time.Duration
	orders    []domain.LegResult
}

// New creates a paper venue with the given name and taker fee.
func New(name string, takerFeePct float64) *Adapter {
	return &Adapter{
		name:        name,
		takerFeePct: takerFeePct,
		quotes:      make(map[string]domain.Quote),
		behaviors:   make(map[behaviorKey]Behavior),
	}
}

// SetQuote installs the quote returned for symbol. ObservedAt defaults to now.
func (a *Adapter) SetQuote(q domain.Quote) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q.Venue = a.name
	if q.ObservedAt.IsZero() {
		q.ObservedAt = time.Now().UTC()
	}
	a.quotes[q.Symbol] = q
}

// SetBehavior overrides the response to orders on symbol/side.
func (a *Adapter) SetBehavior(symbol string, side domain.Side, b Behavior) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.behaviors[behaviorKey{symbol, side}] = b
}

// SetLatency adds a fixed delay before each order resolves.
func (a *Adapter) SetLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency = d
}

// Orders returns a copy of every leg the venue has executed or rejected.
func (a *Adapter) Orders() []domain.LegResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.LegResult, len(a.orders))
	copy(out, a.orders)
	return out
}

func (a *Adapter) Name() string         { return a.name }
func (a *Adapter) TakerFeePct() float64 { return a.takerFeePct }

func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.quotes[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("paper: no quote for %s: %w", symbol, domain.ErrNotFound)
	}
	return q, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, symbol string, side domain.Side, size domain.SizeSpec) (domain.LegResult, error) {
	a.mu.Lock()
	q, hasQuote := a.quotes[symbol]
	b := a.behaviors[behaviorKey{symbol, side}]
	latency := a.latency
	a.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			b = Hang
		}
	}

	if b == Hang {
		<-ctx.Done()
		err := fmt.Errorf("paper: order %s %s: %w", side, symbol, domain.ErrNetworkFailure)
		leg := venue.RejectedLeg(a.name, symbol, side, size.BaseQty, domain.LegTimedOut, err)
		a.record(leg)
		return leg, err
	}

	if !hasQuote {
		err := fmt.Errorf("paper: no quote for %s: %w", symbol, domain.ErrVenueRejected)
		leg := venue.RejectedLeg(a.name, symbol, side, size.BaseQty, domain.LegRejected, err)
		a.record(leg)
		return leg, err
	}

	price := q.AskPrice
	if side == domain.SideSell {
		price = q.BidPrice
	}

	qty := size.BaseQty
	if qty == 0 && size.QuoteAmount > 0 && price > 0 {
		qty = size.QuoteAmount / price
	}

	if b == Reject {
		err := fmt.Errorf("paper: order %s %s refused: %w", side, symbol, domain.ErrVenueRejected)
		leg := venue.RejectedLeg(a.name, symbol, side, qty, domain.LegRejected, err)
		a.record(leg)
		return leg, err
	}

	leg := domain.LegResult{
		Venue:         a.name,
		Symbol:        symbol,
		Side:          side,
		RequestedQty:  qty,
		ExecutedQty:   qty,
		ExecutedPrice: price,
		FeeUSD:        price * qty * a.takerFeePct / 100,
		Status:        domain.LegFilled,
	}
	a.record(leg)
	return leg, nil
}

func (a *Adapter) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	return 0, nil
}

func (a *Adapter) record(leg domain.LegResult) {
	a.mu.Lock()
	a.orders = append(a.orders, leg)
	a.mu.Unlock()
}

var _ domain.VenueAdapter = (*Adapter)(nil)
