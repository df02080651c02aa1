package ranker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/ledger"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opWith(kind domain.OpportunityKind, symbol string, spreadPct, netUSD float64, detectedAt time.Time) domain.Opportunity {
	return domain.Opportunity{
		ID:                    uuid.NewString(),
		Kind:                  kind,
		Legs:                  []domain.LegIntent{{Venue: "venue1", Symbol: symbol, Side: domain.SideBuy}},
		GrossSpreadPct:        spreadPct,
		EstimatedNetProfitUSD: netUSD,
		BasisQuotes: []domain.Quote{
			{Venue: "venue1", Symbol: symbol, BidPrice: 1, AskPrice: 1, ObservedAt: detectedAt},
		},
		DetectedAt: detectedAt,
	}
}

func TestRankThresholds(t *testing.T) {
	now := time.Now().UTC()
	params := Params{MinSpreadPct: 0.3, MinProfitUSD: 2.0, MaxQuoteAge: 3 * time.Second}
	r := New(params, nil, discard())

	// 0.60% spread, $3.00 net: passes both thresholds.
	passing := opWith(domain.OpportunityPairwise, "BTCUSDT", 0.60, 3.00, now)
	out := r.Rank(context.Background(), []domain.Opportunity{passing}, now)
	if len(out) != 1 || out[0].ID != passing.ID {
		t.Fatalf("passing opportunity filtered: %v", out)
	}

	// Same candidate against a $5 floor is dropped.
	r = New(Params{MinSpreadPct: 0.3, MinProfitUSD: 5.0, MaxQuoteAge: 3 * time.Second}, nil, discard())
	if out := r.Rank(context.Background(), []domain.Opportunity{passing}, now); len(out) != 0 {
		t.Fatalf("below-profit opportunity survived: %v", out)
	}

	// Below min spread.
	r = New(params, nil, discard())
	thin := opWith(domain.OpportunityPairwise, "BTCUSDT", 0.1, 3.00, now)
	if out := r.Rank(context.Background(), []domain.Opportunity{thin}, now); len(out) != 0 {
		t.Fatalf("below-spread opportunity survived: %v", out)
	}
}

func TestRankDropsStale(t *testing.T) {
	now := time.Now().UTC()
	r := New(Params{MaxQuoteAge: 3 * time.Second}, nil, discard())

	stale := opWith(domain.OpportunityPairwise, "BTCUSDT", 1.0, 10.0, now.Add(-10*time.Second))
	if out := r.Rank(context.Background(), []domain.Opportunity{stale}, now); len(out) != 0 {
		t.Fatalf("stale opportunity survived: %v", out)
	}
}

func TestRankAllowList(t *testing.T) {
	now := time.Now().UTC()
	r := New(Params{AllowList: []string{"ETHUSDT"}, MaxQuoteAge: time.Minute}, nil, discard())

	btc := opWith(domain.OpportunityPairwise, "BTCUSDT", 1.0, 10.0, now)
	eth := opWith(domain.OpportunityPairwise, "ETHUSDT", 1.0, 8.0, now)

	out := r.Rank(context.Background(), []domain.Opportunity{btc, eth}, now)
	if len(out) != 1 || out[0].ID != eth.ID {
		t.Fatalf("allow list not enforced: %v", out)
	}
}

func TestRankCooldown(t *testing.T) {
	now := time.Now().UTC()
	store := ledger.NewMemoryStore()
	err := store.Record(context.Background(), domain.ExecutionAttempt{
		ID:        uuid.NewString(),
		Symbols:   []string{"BTCUSDT"},
		StartedAt: now.Add(-2 * time.Second),
		Outcome:   domain.OutcomeCompleted,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := New(Params{CooldownWindow: 5 * time.Second, MaxQuoteAge: time.Minute}, store, discard())

	btc := opWith(domain.OpportunityPairwise, "BTCUSDT", 1.0, 10.0, now)
	eth := opWith(domain.OpportunityPairwise, "ETHUSDT", 1.0, 8.0, now)

	out := r.Rank(context.Background(), []domain.Opportunity{btc, eth}, now)
	if len(out) != 1 || out[0].ID != eth.ID {
		t.Fatalf("cooling symbol not excluded: %v", out)
	}

	// Outside the window the symbol trades again.
	later := now.Add(10 * time.Second)
	btcLater := opWith(domain.OpportunityPairwise, "BTCUSDT", 1.0, 10.0, later)
	out = r.Rank(context.Background(), []domain.Opportunity{btcLater}, later)
	if len(out) != 1 {
		t.Fatalf("cooldown outlived its window: %v", out)
	}
}

func TestRankOrdering(t *testing.T) {
	now := time.Now().UTC()
	r := New(Params{MaxQuoteAge: time.Minute}, nil, discard())

	small := opWith(domain.OpportunityPairwise, "A", 1.0, 2.0, now)
	big := opWith(domain.OpportunityPairwise, "B", 1.0, 9.0, now)
	triTie := opWith(domain.OpportunityTriangular, "C", 1.0, 9.0, now)

	out := r.Rank(context.Background(), []domain.Opportunity{small, triTie, big}, now)
	if len(out) != 3 {
		t.Fatalf("got %d, want 3", len(out))
	}
	if out[0].ID != big.ID {
		t.Fatalf("pairwise tie-break lost: first is %s", out[0].Kind)
	}
	if out[1].ID != triTie.ID || out[2].ID != small.ID {
		t.Fatalf("wrong order: %s, %s", out[1].ID, out[2].ID)
	}
}
