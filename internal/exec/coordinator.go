// Package exec drives execution attempts through their state machine:
// Pending, Executing, then exactly one of Completed, Partial, or Failed.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Recorder persists finalized attempts. The ledger package provides the
// production implementation with retry and backoff.
type Recorder interface {
	Record(ctx context.Context, attempt domain.ExecutionAttempt) error
}

// Config holds coordinator timing parameters.
type Config struct {
	LegTimeout         time.Duration
	MaxAttemptDuration time.Duration
}

// Coordinator executes opportunities. All legs of an attempt are dispatched
// concurrently; a failing or hanging leg never cancels its siblings, because
// a sibling that can still fill reduces the exposed position.
type Coordinator struct {
	venues   map[string]domain.VenueAdapter
	locks    *LockTable
	recorder Recorder
	notifier domain.AttemptNotifier
	bus      domain.EventBus
	cfg      Config
	logger   *slog.Logger
}

// New creates a Coordinator. notifier and bus may be nil.
func New(venues map[string]domain.VenueAdapter, locks *LockTable, recorder Recorder, notifier domain.AttemptNotifier, bus domain.EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 5 * time.Second
	}
	if cfg.MaxAttemptDuration <= 0 {
		cfg.MaxAttemptDuration = 3 * cfg.LegTimeout
	}
	return &Coordinator{
		venues:   venues,
		locks:    locks,
		recorder: recorder,
		notifier: notifier,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// Execute runs one attempt for op. It returns ErrAlreadyInFlight without
// persisting anything when another attempt holds a lock on any of the
// opportunity's symbols. Otherwise it always returns a terminal attempt,
// already recorded in the ledger.
func (c *Coordinator) Execute(ctx context.Context, op domain.Opportunity) (domain.ExecutionAttempt, error) {
	attemptID := uuid.NewString()
	symbols := op.Symbols()

	// Pending: lock acquisition happens before any leg dispatch.
	if err := c.locks.Acquire(symbols, attemptID); err != nil {
		c.logger.Info("candidate skipped",
			slog.String("opportunity_id", op.ID),
			slog.Any("symbols", symbols),
			slog.String("reason", "symbol already in flight"),
		)
		return domain.ExecutionAttempt{}, fmt.Errorf("exec: opportunity %s: %w", op.ID, err)
	}

	attempt := domain.ExecutionAttempt{
		ID:            attemptID,
		OpportunityID: op.ID,
		Kind:          op.Kind,
		Symbols:       symbols,
		StartedAt:     time.Now().UTC(),
	}

	c.logger.Info("executing",
		slog.String("attempt_id", attemptID),
		slog.String("kind", string(op.Kind)),
		slog.Any("symbols", symbols),
		slog.Float64("estimated_net_usd", op.EstimatedNetProfitUSD),
	)

	attempt.Legs = c.runLegs(ctx, op)
	attempt.Outcome = domain.Classify(attempt.Legs)
	attempt.RealizedNetProfitUSD = realizedProfit(op.Kind, attempt.Legs)
	done := time.Now().UTC()
	attempt.CompletedAt = &done

	// Locks release on the terminal transition, before persistence: a slow
	// ledger must not extend the symbols' exclusion.
	c.locks.Release(symbols, attemptID)

	c.logger.Info("attempt finished",
		slog.String("attempt_id", attemptID),
		slog.String("outcome", string(attempt.Outcome)),
		slog.Float64("realized_net_usd", attempt.RealizedNetProfitUSD),
	)

	if err := c.recorder.Record(ctx, attempt); err != nil {
		c.logger.Error("ledger write failed",
			slog.String("attempt_id", attemptID),
			slog.String("error", err.Error()),
		)
	}

	switch attempt.Outcome {
	case domain.OutcomePartial:
		c.flagPartial(ctx, attempt)
	default:
		if c.notifier != nil {
			c.notifier.NotifyOutcome(ctx, attempt)
		}
	}
	return attempt, nil
}

// runLegs dispatches every leg concurrently and collects results, bounding
// the whole attempt with a watchdog. Legs that have not resolved when the
// watchdog fires are recorded as timed out; their goroutines are left to
// finish against an already-cancelled context.
func (c *Coordinator) runLegs(ctx context.Context, op domain.Opportunity) []domain.LegResult {
	type indexed struct {
		i   int
		leg domain.LegResult
	}
	results := make(chan indexed, len(op.Legs))

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i, intent := range op.Legs {
		wg.Add(1)
		go func(i int, intent domain.LegIntent) {
			defer wg.Done()
			results <- indexed{i, c.runLeg(attemptCtx, intent)}
		}(i, intent)
	}

	legs := make([]domain.LegResult, len(op.Legs))
	resolved := make([]bool, len(op.Legs))
	pending := len(op.Legs)

	watchdog := time.NewTimer(c.cfg.MaxAttemptDuration)
	defer watchdog.Stop()

	for pending > 0 {
		select {
		case r := <-results:
			legs[r.i] = r.leg
			resolved[r.i] = true
			pending--
		case <-watchdog.C:
			cancel()
			for i, intent := range op.Legs {
				if resolved[i] {
					continue
				}
				legs[i] = domain.LegResult{
					Venue:        intent.Venue,
					Symbol:       intent.Symbol,
					Side:         intent.Side,
					RequestedQty: intent.Size.BaseQty,
					Status:       domain.LegTimedOut,
					Error:        "attempt exceeded max duration",
				}
				c.logger.Warn("watchdog timed out leg",
					slog.String("venue", intent.Venue),
					slog.String("symbol", intent.Symbol),
				)
			}
			return legs
		}
	}
	wg.Wait()
	return legs
}

func (c *Coordinator) runLeg(ctx context.Context, intent domain.LegIntent) domain.LegResult {
	adapter, ok := c.venues[intent.Venue]
	if !ok {
		return domain.LegResult{
			Venue:        intent.Venue,
			Symbol:       intent.Symbol,
			Side:         intent.Side,
			RequestedQty: intent.Size.BaseQty,
			Status:       domain.LegRejected,
			Error:        "venue not configured",
		}
	}

	legCtx, cancel := context.WithTimeout(ctx, c.cfg.LegTimeout)
	defer cancel()

	leg, err := adapter.PlaceOrder(legCtx, intent.Symbol, intent.Side, intent.Size)
	if err != nil {
		// A leg failure stays local: the result carries the terminal status
		// and siblings keep running.
		c.logger.Warn("leg failed",
			slog.String("venue", intent.Venue),
			slog.String("symbol", intent.Symbol),
			slog.String("side", string(intent.Side)),
			slog.String("status", string(leg.Status)),
			slog.String("error", err.Error()),
		)
	}
	return leg
}

// realizedProfit computes recorded P&L from actual fills only. The detection
// estimate never enters the recorded number. Pairwise legs all settle in the
// funding currency, so filled sells minus filled buys minus fees nets
// directly.
func realizedProfit(kind domain.OpportunityKind, legs []domain.LegResult) float64 {
	if kind == domain.OpportunityTriangular && len(legs) == 3 {
		return triangularRealized(legs)
	}
	total := 0.0
	for _, leg := range legs {
		if leg.Status != domain.LegFilled {
			continue
		}
		switch leg.Side {
		case domain.SideSell:
			total += leg.Notional()
		case domain.SideBuy:
			total -= leg.Notional()
		}
		total -= leg.FeeUSD
	}
	return total
}

// triangularRealized nets the funding-currency flow of a three-leg cycle.
// Only the outer legs trade against the funding currency; the middle leg's
// notional and fee are denominated in the intermediate asset and must not be
// summed at face value. Its fee is converted through the executed price of
// whichever outer leg traded that asset.
func triangularRealized(legs []domain.LegResult) float64 {
	first, mid, last := legs[0], legs[1], legs[2]

	total := 0.0
	if first.Status == domain.LegFilled {
		switch first.Side {
		case domain.SideBuy:
			total -= first.Notional() + first.FeeUSD
		case domain.SideSell:
			total += first.Notional() - first.FeeUSD
		}
	}
	if last.Status == domain.LegFilled {
		switch last.Side {
		case domain.SideSell:
			total += last.Notional() - last.FeeUSD
		case domain.SideBuy:
			total -= last.Notional() + last.FeeUSD
		}
	}
	if mid.Status == domain.LegFilled {
		total -= mid.FeeUSD * intermediatePrice(first, mid, last)
	}
	return total
}

// intermediatePrice values one unit of the middle leg's settlement asset in
// the funding currency. A middle buy spends the asset the first leg traded;
// a middle sell receives the asset the last leg trades back into funding.
// Without a filled anchoring leg there is no observed price, so the fee is
// left unvalued rather than guessed.
func intermediatePrice(first, mid, last domain.LegResult) float64 {
	if mid.Side == domain.SideBuy && first.Status == domain.LegFilled {
		return first.ExecutedPrice
	}
	if mid.Side == domain.SideSell && last.Status == domain.LegFilled {
		return last.ExecutedPrice
	}
	return 0
}

// partialEvent is the payload published when an attempt ends Partial, so the
// balance-recovery collaborator can cancel resting orders and free funds.
type partialEvent struct {
	AttemptID string   `json:"attempt_id"`
	Venue     string   `json:"venue"`
	Symbol    string   `json:"symbol"`
	Status    string   `json:"status"`
	Symbols   []string `json:"symbols"`
}

func (c *Coordinator) flagPartial(ctx context.Context, attempt domain.ExecutionAttempt) {
	unresolved := attempt.UnresolvedLegs()
	if c.notifier != nil {
		c.notifier.NotifyPartial(ctx, attempt, unresolved)
	}
	if c.bus == nil {
		return
	}
	for _, leg := range unresolved {
		payload, err := json.Marshal(partialEvent{
			AttemptID: attempt.ID,
			Venue:     leg.Venue,
			Symbol:    leg.Symbol,
			Status:    string(leg.Status),
			Symbols:   attempt.Symbols,
		})
		if err != nil {
			continue
		}
		if err := c.bus.Publish(ctx, "recovery.partial", payload); err != nil {
			c.logger.Warn("recovery event publish failed",
				slog.String("attempt_id", attempt.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}
