// Package ledger is the append-only trade record. Writes retry with backoff
// and, if the store stays unreachable, the attempt is logged in full at
// error level: losing the record of a real trade is worse than a delayed
// write, so persistence failure is never silent.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/notify"
)

// Alerter pushes an operator alert when a write is abandoned. The notify
// Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event notify.Event, title, message string) error
}

// Ledger wraps an AttemptStore with retry policy for writes.
type Ledger struct {
	store      domain.AttemptStore
	maxRetries int
	baseDelay  time.Duration
	alerter    Alerter
	logger     *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRetries overrides the number of write retries.
func WithRetries(n int) Option {
	return func(l *Ledger) {
		if n >= 0 {
			l.maxRetries = n
		}
	}
}

// WithBaseDelay overrides the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.baseDelay = d
		}
	}
}

// WithAlerter installs an operator alert channel for abandoned writes.
func WithAlerter(a Alerter) Option {
	return func(l *Ledger) {
		l.alerter = a
	}
}

// New creates a Ledger over store.
func New(store domain.AttemptStore, logger *slog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		maxRetries: 4,
		baseDelay:  200 * time.Millisecond,
		logger:     logger.With(slog.String("component", "ledger")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record persists attempt, retrying with capped exponential backoff. When
// retries exhaust, the full attempt is dumped to the log so an operator can
// reconstruct the trade, and the last error is returned.
func (l *Ledger) Record(ctx context.Context, attempt domain.ExecutionAttempt) error {
	delay := l.baseDelay
	var lastErr error

	for try := 0; try <= l.maxRetries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				return l.giveUp(ctx, attempt, lastErr)
			case <-time.After(delay):
			}
			delay *= 2
			if delay > 5*time.Second {
				delay = 5 * time.Second
			}
		}

		lastErr = l.store.Record(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		l.logger.Warn("ledger write retry",
			slog.String("attempt_id", attempt.ID),
			slog.Int("try", try+1),
			slog.String("error", lastErr.Error()),
		)
	}
	return l.giveUp(ctx, attempt, lastErr)
}

func (l *Ledger) giveUp(ctx context.Context, attempt domain.ExecutionAttempt, err error) error {
	// Operator-visible dump of the unpersisted trade.
	l.logger.Error("TRADE RECORD LOST: ledger unreachable",
		slog.String("attempt_id", attempt.ID),
		slog.String("opportunity_id", attempt.OpportunityID),
		slog.String("outcome", string(attempt.Outcome)),
		slog.Any("symbols", attempt.Symbols),
		slog.Float64("realized_net_usd", attempt.RealizedNetProfitUSD),
		slog.Any("legs", attempt.Legs),
		slog.String("error", err.Error()),
	)
	if l.alerter != nil {
		msg := fmt.Sprintf("Attempt %s (%s, realized $%.2f) could not be persisted: %v. Reconstruct it from the error log.",
			attempt.ID, attempt.Outcome, attempt.RealizedNetProfitUSD, err)
		_ = l.alerter.Notify(ctx, notify.EventLedgerWriteFailed, "Trade record lost", msg)
	}
	return fmt.Errorf("ledger: record attempt %s: %w", attempt.ID, err)
}

// RecentAttempts passes through to the store.
func (l *Ledger) RecentAttempts(ctx context.Context, symbol string, window time.Duration) ([]domain.ExecutionAttempt, error) {
	return l.store.RecentAttempts(ctx, symbol, window)
}

// ListRecent passes through to the store.
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionAttempt, error) {
	return l.store.ListRecent(ctx, limit)
}

var _ domain.AttemptStore = (*Ledger)(nil)
