package domain

import (
	"context"
	"time"
)

// VenueAdapter normalizes a trading venue's quote and order endpoints into a
// common contract. Implementations must be safe for concurrent use; every
// method that performs I/O must respect the context deadline and surface
// timeouts as ErrNetworkFailure.
type VenueAdapter interface {
	// Name returns the venue identifier used in quotes, legs, and config.
	Name() string

	// TakerFeePct returns the venue's taker fee as a percentage (0.1 = 0.1%).
	TakerFeePct() float64

	// FetchQuote returns the current top-of-book quote for symbol. It has no
	// side effects. Errors wrap ErrNetworkFailure or ErrVenueRejected.
	FetchQuote(ctx context.Context, symbol string) (Quote, error)

	// PlaceOrder submits a market order. The adapter converts between base
	// quantity and quote amount as the venue requires, rounds to the venue's
	// step and notional constraints, and rejects locally with
	// ErrSizeBelowMinimum instead of submitting an order guaranteed to fail
	// remotely. The returned LegResult carries the terminal leg status even
	// when err is non-nil.
	PlaceOrder(ctx context.Context, symbol string, side Side, size SizeSpec) (LegResult, error)

	// CancelOpenOrders cancels resting orders, optionally restricted to one
	// symbol (empty string means all). Returns the number of cancelled orders.
	CancelOpenOrders(ctx context.Context, symbol string) (int, error)
}

// QuoteStreamer is implemented by venue adapters that can push quotes over a
// persistent connection. The price feed prefers streaming over polling when
// available.
type QuoteStreamer interface {
	// StreamQuotes delivers quotes for the given symbols to handle until the
	// context is cancelled or the stream fails.
	StreamQuotes(ctx context.Context, symbols []string, handle func(Quote)) error
}

// AttemptStore is the trade ledger boundary: append-only persistence of
// every execution attempt.
type AttemptStore interface {
	// Record appends a finalized attempt. Exactly one call per attempt.
	Record(ctx context.Context, attempt ExecutionAttempt) error

	// RecentAttempts returns attempts touching symbol that started within
	// window of now, newest first. Used by the ranker's cooldown check.
	RecentAttempts(ctx context.Context, symbol string, window time.Duration) ([]ExecutionAttempt, error)

	// ListRecent returns the newest attempts up to limit.
	ListRecent(ctx context.Context, limit int) ([]ExecutionAttempt, error)
}

// QuoteCache mirrors the freshest quotes into shared storage for the
// monitoring surface. Writes are best-effort.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, venue, symbol string) (Quote, error)
}

// EventBus publishes operational events (partial fills, attempt outcomes)
// for external collaborators such as the balance-recovery workflow.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// AttemptNotifier is told about every terminal attempt. NotifyPartial fires
// for Partial outcomes so locked balances on the unresolved legs' venues can
// be freed; NotifyOutcome fires for Completed and Failed. Implementations
// notify an external collaborator; they never call back into the coordinator.
type AttemptNotifier interface {
	NotifyPartial(ctx context.Context, attempt ExecutionAttempt, unresolved []LegResult)
	NotifyOutcome(ctx context.Context, attempt ExecutionAttempt)
}
