// Package detector finds arbitrage candidates in a price snapshot. Both
// algorithms are pure: no I/O, deterministic for a given snapshot, safe to
// run on every tick.
package detector

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Params holds detection thresholds shared by both algorithms.
type Params struct {
	Symbols           []string
	VenueFees         map[string]float64 // venue name -> taker fee pct
	MaxInvestmentUSD  float64
	SlippageBufferPct float64
	MaxQuoteAge       time.Duration
	Triangles         []Triangle
	TriangleStartUSD  float64
}

// Pairwise scans every symbol and every ordered pair of distinct venues for
// a positive cross-venue spread: buy at V1's ask, sell at V2's bid.
func Pairwise(snap domain.Snapshot, p Params) []domain.Opportunity {
	var out []domain.Opportunity
	now := snap.TakenAt

	for _, symbol := range p.Symbols {
		quotes := freshQuotes(snap, symbol, now, p.MaxQuoteAge)
		if len(quotes) < 2 {
			continue
		}
		for _, buyAt := range quotes {
			for _, sellAt := range quotes {
				if buyAt.Venue == sellAt.Venue {
					continue
				}
				if op, ok := pairwiseOpportunity(buyAt, sellAt, p, now); ok {
					out = append(out, op)
				}
			}
		}
	}
	return out
}

func pairwiseOpportunity(buyAt, sellAt domain.Quote, p Params, now time.Time) (domain.Opportunity, bool) {
	if buyAt.AskPrice <= 0 || sellAt.BidPrice <= 0 {
		return domain.Opportunity{}, false
	}
	spreadPct := (sellAt.BidPrice - buyAt.AskPrice) / buyAt.AskPrice * 100
	if spreadPct <= 0 {
		return domain.Opportunity{}, false
	}

	size := p.MaxInvestmentUSD
	feesPct := p.VenueFees[buyAt.Venue] + p.VenueFees[sellAt.Venue]
	grossUSD := size * spreadPct / 100
	feesUSD := size * feesPct / 100
	slippageUSD := size * p.SlippageBufferPct / 100

	return domain.Opportunity{
		ID:   uuid.NewString(),
		Kind: domain.OpportunityPairwise,
		Legs: []domain.LegIntent{
			{
				Venue:          buyAt.Venue,
				Symbol:         buyAt.Symbol,
				Side:           domain.SideBuy,
				Size:           domain.QuoteSize(size),
				ReferencePrice: buyAt.AskPrice,
			},
			{
				Venue:          sellAt.Venue,
				Symbol:         sellAt.Symbol,
				Side:           domain.SideSell,
				Size:           domain.BaseSize(size / buyAt.AskPrice),
				ReferencePrice: sellAt.BidPrice,
			},
		},
		GrossSpreadPct:        spreadPct,
		EstimatedFeesPct:      feesPct,
		EstimatedNetProfitUSD: grossUSD - feesUSD - slippageUSD,
		BasisQuotes:           []domain.Quote{buyAt, sellAt},
		DetectedAt:            now,
	}, true
}

// freshQuotes returns the snapshot's quotes for symbol that are within the
// staleness bound, in deterministic venue order.
func freshQuotes(snap domain.Snapshot, symbol string, now time.Time, maxAge time.Duration) []domain.Quote {
	var out []domain.Quote
	for key, q := range snap.Quotes {
		if key.Symbol != symbol {
			continue
		}
		if maxAge > 0 && q.Age(now) > maxAge {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}
