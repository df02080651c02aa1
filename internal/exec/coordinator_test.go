package exec

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/ledger"
	"github.com/arbcorelabs/arbcore/internal/venue/paper"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type notifierStub struct {
	mu         sync.Mutex
	attempts   []domain.ExecutionAttempt
	unresolved [][]domain.LegResult
	outcomes   []domain.ExecutionAttempt
}

func (r *notifierStub) NotifyPartial(ctx context.Context, attempt domain.ExecutionAttempt, unresolved []domain.LegResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	r.unresolved = append(r.unresolved, unresolved)
}

func (r *notifierStub) NotifyOutcome(ctx context.Context, attempt domain.ExecutionAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, attempt)
}

type busStub struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *busStub) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func pairwiseOp(symbol string) domain.Opportunity {
	return domain.Opportunity{
		ID:   uuid.NewString(),
		Kind: domain.OpportunityPairwise,
		Legs: []domain.LegIntent{
			{Venue: "venue1", Symbol: symbol, Side: domain.SideBuy, Size: domain.QuoteSize(1000), ReferencePrice: 100},
			{Venue: "venue2", Symbol: symbol, Side: domain.SideSell, Size: domain.BaseSize(10), ReferencePrice: 100.60},
		},
		EstimatedNetProfitUSD: 3,
		DetectedAt:            time.Now().UTC(),
	}
}

func twoVenues(t *testing.T) (*paper.Adapter, *paper.Adapter, map[string]domain.VenueAdapter) {
	t.Helper()
	v1 := paper.New("venue1", 0.1)
	v2 := paper.New("venue2", 0.1)
	v1.SetQuote(domain.Quote{Symbol: "BTCUSDT", BidPrice: 99.90, AskPrice: 100.00})
	v2.SetQuote(domain.Quote{Symbol: "BTCUSDT", BidPrice: 100.60, AskPrice: 100.70})
	return v1, v2, map[string]domain.VenueAdapter{"venue1": v1, "venue2": v2}
}

func TestExecuteCompleted(t *testing.T) {
	_, _, venues := twoVenues(t)
	store := ledger.NewMemoryStore()
	locks := NewLockTable()
	notifier := &notifierStub{}
	c := New(venues, locks, store, notifier, nil, Config{LegTimeout: time.Second}, discard())

	attempt, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", attempt.Outcome)
	}
	if attempt.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}

	// Buy 10 @100 ($1 fee), sell 10 @100.60 ($1.006 fee).
	want := 10*100.60 - 10*100.00 - 1.0 - 1.006
	if math.Abs(attempt.RealizedNetProfitUSD-want) > 1e-9 {
		t.Fatalf("realized = %v, want %v", attempt.RealizedNetProfitUSD, want)
	}

	if locks.Held("BTCUSDT") {
		t.Fatal("lock still held after terminal attempt")
	}
	recorded, _ := store.ListRecent(context.Background(), 10)
	if len(recorded) != 1 || recorded[0].ID != attempt.ID {
		t.Fatalf("ledger holds %d records", len(recorded))
	}

	if len(notifier.outcomes) != 1 || notifier.outcomes[0].Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome notifications = %+v, want one completed", notifier.outcomes)
	}
	if len(notifier.unresolved) != 0 {
		t.Fatal("completed attempt raised a partial alert")
	}
}

// A triangular cycle routes the funding currency through an intermediate
// asset: only the outer legs settle in dollars. 1000 USDT buys BTC, the BTC
// buys ETH, the ETH sells back to USDT; with a 0.1% fee per leg the recorded
// P&L must value the middle leg's BTC-denominated fee at the BTC purchase
// price instead of counting its notional as dollars.
func TestExecuteTriangularRealizedProfit(t *testing.T) {
	v := paper.New("venue1", 0.1)
	v.SetQuote(domain.Quote{Symbol: "BTCUSDT", BidPrice: 49990, AskPrice: 50000})
	v.SetQuote(domain.Quote{Symbol: "ETHBTC", BidPrice: 0.0399, AskPrice: 0.04})
	v.SetQuote(domain.Quote{Symbol: "ETHUSDT", BidPrice: 2100, AskPrice: 2101})
	venues := map[string]domain.VenueAdapter{"venue1": v}

	op := domain.Opportunity{
		ID:   uuid.NewString(),
		Kind: domain.OpportunityTriangular,
		Legs: []domain.LegIntent{
			{Venue: "venue1", Symbol: "BTCUSDT", Side: domain.SideBuy, Size: domain.QuoteSize(1000), ReferencePrice: 50000},
			{Venue: "venue1", Symbol: "ETHBTC", Side: domain.SideBuy, Size: domain.QuoteSize(0.01998), ReferencePrice: 0.04},
			{Venue: "venue1", Symbol: "ETHUSDT", Side: domain.SideSell, Size: domain.BaseSize(0.4990005), ReferencePrice: 2100},
		},
		DetectedAt: time.Now().UTC(),
	}

	store := ledger.NewMemoryStore()
	c := New(venues, NewLockTable(), store, nil, nil, Config{LegTimeout: time.Second}, discard())

	attempt, err := c.Execute(context.Background(), op)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Outcome != domain.OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", attempt.Outcome)
	}

	// Entry leg: spend 1000 USDT at 50000 plus a $1 fee. Exit leg: sell
	// 0.4990005 ETH at 2100 less its fee. Middle leg: only its BTC fee
	// (0.00001998) touches the cycle, valued at the entry price.
	entry := 1000.0 + 1000.0*0.1/100
	exit := 0.4990005*2100 - 0.4990005*2100*0.1/100
	midFee := (0.01998 * 0.1 / 100 / 0.04) * 0.04 * 50000
	want := exit - entry - midFee

	if math.Abs(attempt.RealizedNetProfitUSD-want) > 1e-9 {
		t.Fatalf("realized = %.8f, want %.8f", attempt.RealizedNetProfitUSD, want)
	}
	// The mixed-currency sum (treating the BTC leg's notional and fee as
	// dollars) lands near 45.83; the true figure is below it.
	if attempt.RealizedNetProfitUSD > 45.0 {
		t.Fatalf("realized = %.8f, intermediate notional leaked into dollars", attempt.RealizedNetProfitUSD)
	}
}

// One leg fills, the other venue hangs past the leg timeout: the attempt ends
// Partial and the recovery collaborator hears about the unresolved leg.
func TestExecutePartialNotifiesRecovery(t *testing.T) {
	_, v2, venues := twoVenues(t)
	v2.SetBehavior("BTCUSDT", domain.SideSell, paper.Hang)

	store := ledger.NewMemoryStore()
	recovery := &notifierStub{}
	bus := &busStub{}
	locks := NewLockTable()
	c := New(venues, locks, store, recovery, bus, Config{LegTimeout: 50 * time.Millisecond}, discard())

	attempt, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Outcome != domain.OutcomePartial {
		t.Fatalf("outcome = %s, want partial", attempt.Outcome)
	}

	if len(recovery.unresolved) != 1 {
		t.Fatalf("recovery notified %d times, want 1", len(recovery.unresolved))
	}
	unresolved := recovery.unresolved[0]
	if len(unresolved) != 1 || unresolved[0].Venue != "venue2" || unresolved[0].Symbol != "BTCUSDT" {
		t.Fatalf("unexpected unresolved legs: %+v", unresolved)
	}
	if unresolved[0].Status != domain.LegTimedOut {
		t.Fatalf("unresolved status = %s, want timed_out", unresolved[0].Status)
	}

	if len(bus.channels) != 1 || bus.channels[0] != "recovery.partial" {
		t.Fatalf("bus channels = %v", bus.channels)
	}
	if len(recovery.outcomes) != 0 {
		t.Fatal("partial attempt also raised an outcome alert")
	}

	// Realized P&L comes from the filled buy only: a loss until recovered.
	if attempt.RealizedNetProfitUSD >= 0 {
		t.Fatalf("partial realized = %v, want negative", attempt.RealizedNetProfitUSD)
	}

	recorded, _ := store.ListRecent(context.Background(), 10)
	if len(recorded) != 1 {
		t.Fatalf("ledger holds %d records, want 1", len(recorded))
	}
	if locks.Held("BTCUSDT") {
		t.Fatal("lock still held after partial attempt")
	}
}

// A second opportunity on a symbol already executing is skipped with
// ErrAlreadyInFlight and never reaches the ledger.
func TestExecuteAlreadyInFlight(t *testing.T) {
	v1, v2, venues := twoVenues(t)
	v1.SetLatency(200 * time.Millisecond)
	v2.SetLatency(200 * time.Millisecond)

	store := ledger.NewMemoryStore()
	locks := NewLockTable()
	c := New(venues, locks, store, nil, nil, Config{LegTimeout: time.Second}, discard())

	firstDone := make(chan domain.ExecutionAttempt, 1)
	go func() {
		attempt, _ := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
		firstDone <- attempt
	}()

	// Wait until the first attempt holds the lock.
	deadline := time.Now().Add(time.Second)
	for !locks.Held("BTCUSDT") {
		if time.Now().After(deadline) {
			t.Fatal("first attempt never took the lock")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Fatalf("second Execute = %v, want ErrAlreadyInFlight", err)
	}

	first := <-firstDone
	if first.Outcome != domain.OutcomeCompleted {
		t.Fatalf("first outcome = %s", first.Outcome)
	}

	recorded, _ := store.ListRecent(context.Background(), 10)
	if len(recorded) != 1 {
		t.Fatalf("ledger holds %d records, want only the executed attempt", len(recorded))
	}
	if recorded[0].ID != first.ID {
		t.Fatal("skipped attempt was persisted")
	}
}

// The watchdog bounds the whole attempt even when a leg timeout is generous:
// unresolved legs are synthesized as timed out and the locks still release.
func TestExecuteWatchdog(t *testing.T) {
	_, v2, venues := twoVenues(t)
	v2.SetBehavior("BTCUSDT", domain.SideSell, paper.Hang)

	store := ledger.NewMemoryStore()
	locks := NewLockTable()
	cfg := Config{LegTimeout: 10 * time.Second, MaxAttemptDuration: 100 * time.Millisecond}
	c := New(venues, locks, store, nil, nil, cfg, discard())

	start := time.Now()
	attempt, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("watchdog did not bound the attempt: took %v", elapsed)
	}

	if attempt.Outcome != domain.OutcomePartial {
		t.Fatalf("outcome = %s, want partial", attempt.Outcome)
	}
	var timedOut *domain.LegResult
	for i := range attempt.Legs {
		if attempt.Legs[i].Status == domain.LegTimedOut {
			timedOut = &attempt.Legs[i]
		}
	}
	if timedOut == nil {
		t.Fatalf("no timed-out leg: %+v", attempt.Legs)
	}
	if timedOut.Venue != "venue2" {
		t.Fatalf("timed-out leg venue = %s", timedOut.Venue)
	}
	if locks.Held("BTCUSDT") {
		t.Fatal("lock still held after watchdog")
	}
}

func TestExecuteFailedWhenNoLegFills(t *testing.T) {
	v1, v2, venues := twoVenues(t)
	v1.SetBehavior("BTCUSDT", domain.SideBuy, paper.Reject)
	v2.SetBehavior("BTCUSDT", domain.SideSell, paper.Reject)

	store := ledger.NewMemoryStore()
	notifier := &notifierStub{}
	c := New(venues, NewLockTable(), store, notifier, nil, Config{LegTimeout: time.Second}, discard())

	attempt, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", attempt.Outcome)
	}
	if attempt.RealizedNetProfitUSD != 0 {
		t.Fatalf("failed attempt realized %v, want 0", attempt.RealizedNetProfitUSD)
	}
	if len(notifier.outcomes) != 1 || notifier.outcomes[0].Outcome != domain.OutcomeFailed {
		t.Fatalf("outcome notifications = %+v, want one failed", notifier.outcomes)
	}
}

func TestExecuteUnknownVenueRejectsLeg(t *testing.T) {
	_, _, venues := twoVenues(t)
	delete(venues, "venue2")

	store := ledger.NewMemoryStore()
	c := New(venues, NewLockTable(), store, nil, nil, Config{LegTimeout: time.Second}, discard())

	attempt, err := c.Execute(context.Background(), pairwiseOp("BTCUSDT"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if attempt.Outcome != domain.OutcomePartial {
		t.Fatalf("outcome = %s, want partial", attempt.Outcome)
	}
	if attempt.Legs[1].Status != domain.LegRejected || attempt.Legs[1].Error == "" {
		t.Fatalf("leg2 = %+v", attempt.Legs[1])
	}
}
