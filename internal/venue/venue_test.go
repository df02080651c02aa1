package venue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

func TestNormalizeSizeFromQuoteAmount(t *testing.T) {
	lim := Limits{MinQty: 0.0001, QtyStep: 0.00001, MinNotional: 10}

	qty, err := NormalizeSize(domain.QuoteSize(1000), 50000, lim)
	if err != nil {
		t.Fatalf("NormalizeSize: %v", err)
	}
	if math.Abs(qty-0.02) > 1e-12 {
		t.Fatalf("qty = %v, want 0.02", qty)
	}
}

func TestNormalizeSizeFloorsToStep(t *testing.T) {
	lim := Limits{QtyStep: 0.001}

	qty, err := NormalizeSize(domain.BaseSize(0.12345), 100, lim)
	if err != nil {
		t.Fatalf("NormalizeSize: %v", err)
	}
	if qty != 0.123 {
		t.Fatalf("qty = %v, want 0.123", qty)
	}
}

func TestNormalizeSizeBelowMinQty(t *testing.T) {
	lim := Limits{MinQty: 0.01, QtyStep: 0.001}

	_, err := NormalizeSize(domain.BaseSize(0.005), 100, lim)
	if !errors.Is(err, domain.ErrSizeBelowMinimum) {
		t.Fatalf("err = %v, want ErrSizeBelowMinimum", err)
	}
}

func TestNormalizeSizeBelowMinNotional(t *testing.T) {
	lim := Limits{MinNotional: 10}

	_, err := NormalizeSize(domain.BaseSize(0.05), 100, lim)
	if !errors.Is(err, domain.ErrSizeBelowMinimum) {
		t.Fatalf("err = %v, want ErrSizeBelowMinimum", err)
	}
}

func TestNormalizeSizeEmptySpec(t *testing.T) {
	if _, err := NormalizeSize(domain.SizeSpec{}, 100, Limits{}); err == nil {
		t.Fatal("expected error for empty size spec")
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(nil); got != nil {
		t.Fatalf("ClassifyError(nil) = %v", got)
	}

	if got := ClassifyError(context.DeadlineExceeded); !errors.Is(got, domain.ErrNetworkFailure) {
		t.Fatalf("deadline: got %v, want ErrNetworkFailure", got)
	}

	if got := ClassifyError(errors.New("invalid symbol")); !errors.Is(got, domain.ErrVenueRejected) {
		t.Fatalf("generic: got %v, want ErrVenueRejected", got)
	}

	// Errors already carrying a domain sentinel pass through unchanged.
	wrapped := fmt.Errorf("adapter: %w", domain.ErrSizeBelowMinimum)
	if got := ClassifyError(wrapped); !errors.Is(got, domain.ErrSizeBelowMinimum) {
		t.Fatalf("sentinel: got %v, want ErrSizeBelowMinimum", got)
	}
}
