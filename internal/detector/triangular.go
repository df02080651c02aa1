package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// TriangleLeg is one edge of a configured cycle: the instrument traded and
// the side taken on it.
type TriangleLeg struct {
	Symbol string
	Side   domain.Side
}

// Triangle is a 3-edge cycle on a single venue that starts and ends in the
// funding asset. The leg order fixes the direction of the cycle.
type Triangle struct {
	Venue string
	Legs  [3]TriangleLeg
}

// Triangular evaluates each configured cycle against the snapshot. An amount
// of the funding asset is walked through the three legs: a buy divides by
// the ask, a sell multiplies by the bid, and every leg's proceeds shrink by
// that venue's taker fee. A cycle that returns more than it started with
// becomes an Opportunity.
func Triangular(snap domain.Snapshot, p Params) []domain.Opportunity {
	var out []domain.Opportunity
	now := snap.TakenAt

	start := p.TriangleStartUSD
	if start <= 0 {
		start = p.MaxInvestmentUSD
	}

	for _, tri := range p.Triangles {
		if op, ok := evalTriangle(snap, tri, start, p, now); ok {
			out = append(out, op)
		}
	}
	return out
}

func evalTriangle(snap domain.Snapshot, tri Triangle, start float64, p Params, now time.Time) (domain.Opportunity, bool) {
	feePct := p.VenueFees[tri.Venue]
	feeKeep := 1 - feePct/100

	amount := start
	legs := make([]domain.LegIntent, 0, 3)
	basis := make([]domain.Quote, 0, 3)

	for _, edge := range tri.Legs {
		q, ok := snap.Get(tri.Venue, edge.Symbol)
		if !ok {
			return domain.Opportunity{}, false
		}
		if p.MaxQuoteAge > 0 && q.Age(now) > p.MaxQuoteAge {
			return domain.Opportunity{}, false
		}

		var intent domain.LegIntent
		switch edge.Side {
		case domain.SideBuy:
			if q.AskPrice <= 0 {
				return domain.Opportunity{}, false
			}
			intent = domain.LegIntent{
				Venue:          tri.Venue,
				Symbol:         edge.Symbol,
				Side:           domain.SideBuy,
				Size:           domain.QuoteSize(amount),
				ReferencePrice: q.AskPrice,
			}
			amount = amount / q.AskPrice * feeKeep
		case domain.SideSell:
			if q.BidPrice <= 0 {
				return domain.Opportunity{}, false
			}
			intent = domain.LegIntent{
				Venue:          tri.Venue,
				Symbol:         edge.Symbol,
				Side:           domain.SideSell,
				Size:           domain.BaseSize(amount),
				ReferencePrice: q.BidPrice,
			}
			amount = amount * q.BidPrice * feeKeep
		default:
			return domain.Opportunity{}, false
		}

		legs = append(legs, intent)
		basis = append(basis, q)
	}

	netProfitPct := (amount - start) / start * 100
	if netProfitPct <= 0 {
		return domain.Opportunity{}, false
	}

	slippageUSD := start * p.SlippageBufferPct / 100
	return domain.Opportunity{
		ID:                    uuid.NewString(),
		Kind:                  domain.OpportunityTriangular,
		Legs:                  legs,
		GrossSpreadPct:        netProfitPct,
		EstimatedFeesPct:      3 * feePct,
		EstimatedNetProfitUSD: (amount - start) - slippageUSD,
		BasisQuotes:           basis,
		DetectedAt:            now,
	}, true
}

// Detect runs both algorithms and concatenates their results.
func Detect(snap domain.Snapshot, p Params) []domain.Opportunity {
	out := Pairwise(snap, p)
	out = append(out, Triangular(snap, p)...)
	return out
}
