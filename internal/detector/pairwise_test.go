package detector

import (
	"math"
	"testing"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

func snapshotOf(now time.Time, quotes ...domain.Quote) domain.Snapshot {
	m := make(map[domain.QuoteKey]domain.Quote, len(quotes))
	for _, q := range quotes {
		m[domain.QuoteKey{Venue: q.Venue, Symbol: q.Symbol}] = q
	}
	return domain.Snapshot{Quotes: m, TakenAt: now}
}

func baseParams() Params {
	return Params{
		Symbols:           []string{"BTCUSDT"},
		VenueFees:         map[string]float64{"venue1": 0.1, "venue2": 0.1},
		MaxInvestmentUSD:  1000,
		SlippageBufferPct: 0.1,
		MaxQuoteAge:       3 * time.Second,
	}
}

// Venue1 ask 100.00, Venue2 bid 100.60, fees 0.1% each side, slippage buffer
// 0.1%: gross spread 0.60%, $6.00 gross on a $1000 trial, $2.00 fees, $1.00
// slippage, $3.00 net.
func TestPairwiseSpreadAndNetProfit(t *testing.T) {
	now := time.Now().UTC()
	snap := snapshotOf(now,
		domain.Quote{Venue: "venue1", Symbol: "BTCUSDT", BidPrice: 99.90, AskPrice: 100.00, ObservedAt: now},
		domain.Quote{Venue: "venue2", Symbol: "BTCUSDT", BidPrice: 100.60, AskPrice: 100.70, ObservedAt: now},
	)

	ops := Pairwise(snap, baseParams())
	if len(ops) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(ops))
	}
	op := ops[0]

	if op.Kind != domain.OpportunityPairwise {
		t.Fatalf("kind = %v", op.Kind)
	}
	if math.Abs(op.GrossSpreadPct-0.60) > 1e-9 {
		t.Fatalf("gross spread = %v, want 0.60", op.GrossSpreadPct)
	}
	if math.Abs(op.EstimatedFeesPct-0.2) > 1e-12 {
		t.Fatalf("fees pct = %v, want 0.2", op.EstimatedFeesPct)
	}
	if math.Abs(op.EstimatedNetProfitUSD-3.00) > 1e-9 {
		t.Fatalf("net profit = %v, want 3.00", op.EstimatedNetProfitUSD)
	}

	if len(op.Legs) != 2 {
		t.Fatalf("got %d legs", len(op.Legs))
	}
	buy, sell := op.Legs[0], op.Legs[1]
	if buy.Venue != "venue1" || buy.Side != domain.SideBuy || buy.Size.QuoteAmount != 1000 {
		t.Fatalf("unexpected buy leg: %+v", buy)
	}
	if sell.Venue != "venue2" || sell.Side != domain.SideSell {
		t.Fatalf("unexpected sell leg: %+v", sell)
	}
	if math.Abs(sell.Size.BaseQty-10) > 1e-12 {
		t.Fatalf("sell base qty = %v, want 10", sell.Size.BaseQty)
	}
	if len(op.BasisQuotes) != 2 {
		t.Fatalf("basis quotes = %d, want 2", len(op.BasisQuotes))
	}
}

func TestPairwiseNoOpportunityWhenSpreadNegative(t *testing.T) {
	now := time.Now().UTC()
	snap := snapshotOf(now,
		domain.Quote{Venue: "venue1", Symbol: "BTCUSDT", BidPrice: 100.50, AskPrice: 100.60, ObservedAt: now},
		domain.Quote{Venue: "venue2", Symbol: "BTCUSDT", BidPrice: 100.40, AskPrice: 100.55, ObservedAt: now},
	)

	if ops := Pairwise(snap, baseParams()); len(ops) != 0 {
		t.Fatalf("got %d opportunities, want 0", len(ops))
	}
}

func TestPairwiseSkipsStaleQuotes(t *testing.T) {
	now := time.Now().UTC()
	snap := snapshotOf(now,
		domain.Quote{Venue: "venue1", Symbol: "BTCUSDT", BidPrice: 99.90, AskPrice: 100.00, ObservedAt: now.Add(-10 * time.Second)},
		domain.Quote{Venue: "venue2", Symbol: "BTCUSDT", BidPrice: 100.60, AskPrice: 100.70, ObservedAt: now},
	)

	if ops := Pairwise(snap, baseParams()); len(ops) != 0 {
		t.Fatalf("stale quote produced %d opportunities, want 0", len(ops))
	}
}

// Every basis quote of a produced opportunity is within MaxQuoteAge of
// DetectedAt.
func TestPairwiseBasisQuotesFresh(t *testing.T) {
	now := time.Now().UTC()
	snap := snapshotOf(now,
		domain.Quote{Venue: "venue1", Symbol: "BTCUSDT", BidPrice: 99.90, AskPrice: 100.00, ObservedAt: now.Add(-time.Second)},
		domain.Quote{Venue: "venue2", Symbol: "BTCUSDT", BidPrice: 100.60, AskPrice: 100.70, ObservedAt: now.Add(-2 * time.Second)},
	)

	ops := Pairwise(snap, baseParams())
	if len(ops) != 1 {
		t.Fatalf("got %d opportunities, want 1", len(ops))
	}
	for _, q := range ops[0].BasisQuotes {
		if q.Age(ops[0].DetectedAt) > 3*time.Second {
			t.Fatalf("basis quote too old: %v", q.Age(ops[0].DetectedAt))
		}
	}
}

func TestPairwiseBothDirections(t *testing.T) {
	now := time.Now().UTC()
	// Crossed both ways (inconsistent book, but the detector must handle it):
	// each venue's bid exceeds the other's ask.
	snap := snapshotOf(now,
		domain.Quote{Venue: "venue1", Symbol: "BTCUSDT", BidPrice: 101.00, AskPrice: 99.00, ObservedAt: now},
		domain.Quote{Venue: "venue2", Symbol: "BTCUSDT", BidPrice: 100.00, AskPrice: 99.50, ObservedAt: now},
	)

	ops := Pairwise(snap, baseParams())
	if len(ops) != 2 {
		t.Fatalf("got %d opportunities, want 2", len(ops))
	}
}
