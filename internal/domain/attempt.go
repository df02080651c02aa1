package domain

import "time"

// LegStatus is the terminal status of one executed leg.
type LegStatus string

const (
	LegFilled   LegStatus = "filled"
	LegRejected LegStatus = "rejected"
	LegTimedOut LegStatus = "timed_out"
)

// LegResult records the outcome of placing one order.
type LegResult struct {
	Venue         string
	Symbol        string
	Side          Side
	RequestedQty  float64
	ExecutedQty   float64
	ExecutedPrice float64
	FeeUSD        float64
	Status        LegStatus
	Error         string
}

// Notional returns the executed quote-currency value of the leg.
func (r LegResult) Notional() float64 {
	return r.ExecutedPrice * r.ExecutedQty
}

// AttemptOutcome is the terminal classification of an execution attempt.
type AttemptOutcome string

const (
	// OutcomeCompleted means every leg filled.
	OutcomeCompleted AttemptOutcome = "completed"
	// OutcomePartial means at least one leg filled and at least one did not.
	// This is the economically dangerous case: directional exposure without
	// its hedge. It must be surfaced to the balance-recovery collaborator.
	OutcomePartial AttemptOutcome = "partial"
	// OutcomeFailed means no leg filled.
	OutcomeFailed AttemptOutcome = "failed"
)

// ExecutionAttempt records one execution of an opportunity, successful or not.
// Legs are appended as they complete; the record becomes immutable once
// Outcome is set and is persisted to the trade ledger exactly once.
type ExecutionAttempt struct {
	ID                   string
	OpportunityID        string
	Kind                 OpportunityKind
	Symbols              []string
	StartedAt            time.Time
	CompletedAt          *time.Time
	Legs                 []LegResult
	Outcome              AttemptOutcome
	RealizedNetProfitUSD float64
}

// Classify derives the terminal outcome from the leg results.
func Classify(legs []LegResult) AttemptOutcome {
	filled := 0
	for _, leg := range legs {
		if leg.Status == LegFilled {
			filled++
		}
	}
	switch {
	case filled == len(legs) && len(legs) > 0:
		return OutcomeCompleted
	case filled == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// UnresolvedLegs returns the legs that did not fill, for recovery handling.
func (a ExecutionAttempt) UnresolvedLegs() []LegResult {
	var out []LegResult
	for _, leg := range a.Legs {
		if leg.Status != LegFilled {
			out = append(out, leg)
		}
	}
	return out
}
