// Package venue provides shared helpers for venue adapter implementations:
// order-size normalization against venue lot constraints and error
// classification into the domain taxonomy.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Limits describes a venue's order constraints for one symbol.
type Limits struct {
	// MinQty is the smallest accepted base quantity.
	MinQty float64
	// QtyStep is the base-quantity granularity. Quantities are rounded down
	// to a multiple of QtyStep before submission.
	QtyStep float64
	// MinNotional is the smallest accepted quote-currency order value.
	MinNotional float64
}

// NormalizeSize converts a SizeSpec into a base quantity at the given
// reference price, rounds it down to the venue's step, and validates it
// against the venue's minimums. It returns domain.ErrSizeBelowMinimum when
// the resulting order would be rejected remotely, so the adapter can fail
// locally without a network round trip.
func NormalizeSize(size domain.SizeSpec, refPrice float64, lim Limits) (float64, error) {
	if size.IsZero() {
		return 0, fmt.Errorf("venue: empty size spec: %w", domain.ErrVenueRejected)
	}

	qty := size.BaseQty
	if qty == 0 {
		if refPrice <= 0 {
			return 0, fmt.Errorf("venue: cannot convert quote amount without reference price: %w", domain.ErrVenueRejected)
		}
		qty = size.QuoteAmount / refPrice
	}

	if lim.QtyStep > 0 {
		qty = math.Floor(qty/lim.QtyStep) * lim.QtyStep
		// Re-round to kill float drift from the division above.
		qty = roundToStep(qty, lim.QtyStep)
	}

	if qty <= 0 || qty < lim.MinQty {
		return 0, fmt.Errorf("venue: quantity %v below minimum %v: %w", qty, lim.MinQty, domain.ErrSizeBelowMinimum)
	}
	if lim.MinNotional > 0 && refPrice > 0 && qty*refPrice < lim.MinNotional {
		return 0, fmt.Errorf("venue: notional %v below minimum %v: %w", qty*refPrice, lim.MinNotional, domain.ErrSizeBelowMinimum)
	}

	return qty, nil
}

// roundToStep snaps qty to the nearest multiple of step at step's decimal
// precision.
func roundToStep(qty, step float64) float64 {
	decimals := 0
	for step < 1 && decimals < 12 {
		step *= 10
		decimals++
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(qty*pow) / pow
}

// ClassifyError maps a transport-level error onto the domain taxonomy.
// Context deadline and network errors become ErrNetworkFailure; anything the
// venue itself answered with becomes ErrVenueRejected. Errors already carrying
// a domain sentinel pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNetworkFailure) ||
		errors.Is(err, domain.ErrVenueRejected) ||
		errors.Is(err, domain.ErrSizeBelowMinimum) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkFailure)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%v: %w", err, domain.ErrNetworkFailure)
	}
	return fmt.Errorf("%v: %w", err, domain.ErrVenueRejected)
}

// RejectedLeg builds the LegResult for an order that never filled.
func RejectedLeg(venueName, symbol string, side domain.Side, requestedQty float64, status domain.LegStatus, err error) domain.LegResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return domain.LegResult{
		Venue:        venueName,
		Symbol:       symbol,
		Side:         side,
		RequestedQty: requestedQty,
		Status:       status,
		Error:        msg,
	}
}
