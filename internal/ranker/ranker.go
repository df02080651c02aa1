// Package ranker filters detected opportunities against configured
// thresholds and orders the survivors for execution.
package ranker

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Params holds the ranker's thresholds.
type Params struct {
	MinSpreadPct   float64
	MinProfitUSD   float64
	AllowList      []string // empty means all symbols allowed
	CooldownWindow time.Duration
	MaxQuoteAge    time.Duration
}

// Ranker filters and sorts opportunities. The cooldown check consults the
// trade ledger so a transient spread is not fired on twice while the first
// attempt settles.
type Ranker struct {
	params Params
	ledger domain.AttemptStore
	logger *slog.Logger
}

// New creates a Ranker. ledger may be nil, which disables the cooldown check.
func New(params Params, ledger domain.AttemptStore, logger *slog.Logger) *Ranker {
	return &Ranker{
		params: params,
		ledger: ledger,
		logger: logger.With(slog.String("component", "ranker")),
	}
}

// Rank returns the opportunities that pass every filter, sorted descending
// by estimated net profit. Ties prefer pairwise over triangular: fewer legs,
// smaller partial-failure surface.
func (r *Ranker) Rank(ctx context.Context, ops []domain.Opportunity, now time.Time) []domain.Opportunity {
	var allowed map[string]bool
	if len(r.params.AllowList) > 0 {
		allowed = make(map[string]bool, len(r.params.AllowList))
		for _, s := range r.params.AllowList {
			allowed[s] = true
		}
	}

	cooling := r.coolingSymbols(ctx, ops, now)

	var out []domain.Opportunity
	for _, op := range ops {
		if !op.Fresh(now, r.params.MaxQuoteAge) {
			r.skip(op, "stale quotes")
			continue
		}
		if op.GrossSpreadPct < r.params.MinSpreadPct {
			r.skip(op, "below min spread")
			continue
		}
		if op.EstimatedNetProfitUSD < r.params.MinProfitUSD {
			r.skip(op, "below min profit")
			continue
		}
		if excluded(op, allowed, cooling) {
			r.skip(op, "symbol excluded or cooling down")
			continue
		}
		out = append(out, op)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EstimatedNetProfitUSD != out[j].EstimatedNetProfitUSD {
			return out[i].EstimatedNetProfitUSD > out[j].EstimatedNetProfitUSD
		}
		return out[i].Kind == domain.OpportunityPairwise && out[j].Kind == domain.OpportunityTriangular
	})
	return out
}

func excluded(op domain.Opportunity, allowed, cooling map[string]bool) bool {
	for _, symbol := range op.Symbols() {
		if allowed != nil && !allowed[symbol] {
			return true
		}
		if cooling[symbol] {
			return true
		}
	}
	return false
}

// coolingSymbols asks the ledger which of the candidate symbols had an
// attempt start within the cooldown window. Ledger errors disable the check
// for this tick rather than blocking execution.
func (r *Ranker) coolingSymbols(ctx context.Context, ops []domain.Opportunity, now time.Time) map[string]bool {
	if r.ledger == nil || r.params.CooldownWindow <= 0 {
		return nil
	}

	candidates := make(map[string]bool)
	for _, op := range ops {
		for _, symbol := range op.Symbols() {
			candidates[symbol] = true
		}
	}

	cooling := make(map[string]bool, len(candidates))
	for symbol := range candidates {
		attempts, err := r.ledger.RecentAttempts(ctx, symbol, r.params.CooldownWindow)
		if err != nil {
			r.logger.Warn("cooldown check failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, a := range attempts {
			if now.Sub(a.StartedAt) <= r.params.CooldownWindow {
				cooling[symbol] = true
				break
			}
		}
	}
	return cooling
}

func (r *Ranker) skip(op domain.Opportunity, reason string) {
	r.logger.Debug("opportunity filtered",
		slog.String("id", op.ID),
		slog.String("kind", string(op.Kind)),
		slog.Float64("net_profit_usd", op.EstimatedNetProfitUSD),
		slog.String("reason", reason),
	)
}
