package domain

import "time"

// OpportunityKind classifies the arbitrage topology.
type OpportunityKind string

const (
	// OpportunityPairwise buys on one venue and sells on another.
	OpportunityPairwise OpportunityKind = "pairwise"
	// OpportunityTriangular cycles through three instruments on one venue.
	OpportunityTriangular OpportunityKind = "triangular"
)

// Side indicates whether a leg buys or sells the base asset.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// SizeSpec describes the size of a market order as either a base-asset
// quantity or a quote-asset amount. Exactly one field is non-zero; venues
// differ in which form they accept and the adapter converts as needed.
type SizeSpec struct {
	BaseQty     float64
	QuoteAmount float64
}

// BaseSize builds a SizeSpec from a base-asset quantity.
func BaseSize(qty float64) SizeSpec { return SizeSpec{BaseQty: qty} }

// QuoteSize builds a SizeSpec from a quote-asset amount.
func QuoteSize(amount float64) SizeSpec { return SizeSpec{QuoteAmount: amount} }

// IsZero reports whether neither form of size was specified.
func (s SizeSpec) IsZero() bool { return s.BaseQty == 0 && s.QuoteAmount == 0 }

// LegIntent describes one leg of an opportunity before execution.
type LegIntent struct {
	Venue          string
	Symbol         string
	Side           Side
	Size           SizeSpec
	ReferencePrice float64
}

// Opportunity is a candidate arbitrage produced by the detector from a
// consistent price snapshot. It is read-only and discarded after ranking
// unless it is executed.
type Opportunity struct {
	ID                    string
	Kind                  OpportunityKind
	Legs                  []LegIntent
	GrossSpreadPct        float64
	EstimatedFeesPct      float64
	EstimatedNetProfitUSD float64
	BasisQuotes           []Quote
	DetectedAt            time.Time
}

// Symbols returns the distinct symbols touched by the opportunity's legs,
// in leg order.
func (o Opportunity) Symbols() []string {
	seen := make(map[string]bool, len(o.Legs))
	out := make([]string, 0, len(o.Legs))
	for _, leg := range o.Legs {
		if seen[leg.Symbol] {
			continue
		}
		seen[leg.Symbol] = true
		out = append(out, leg.Symbol)
	}
	return out
}

// Fresh reports whether every basis quote is within maxAge of now.
func (o Opportunity) Fresh(now time.Time, maxAge time.Duration) bool {
	for _, q := range o.BasisQuotes {
		if q.Age(now) > maxAge {
			return false
		}
	}
	return true
}
