package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

func TestQuoteFieldsRoundTrip(t *testing.T) {
	q := domain.Quote{
		Venue:      "binance",
		Symbol:     "BTCUSDT",
		BidPrice:   49990.5,
		AskPrice:   50000.25,
		Volume24h:  1234.5,
		ObservedAt: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}

	raw := quoteFields(q)
	vals := make(map[string]string, len(raw))
	for k, v := range raw {
		vals[k] = fmt.Sprint(v)
	}

	got, err := parseQuoteFields("binance", "BTCUSDT", vals)
	if err != nil {
		t.Fatalf("parseQuoteFields: %v", err)
	}
	if got.Venue != q.Venue || got.Symbol != q.Symbol {
		t.Fatalf("round trip = %+v, want %+v", got, q)
	}
	if got.BidPrice != q.BidPrice || got.AskPrice != q.AskPrice || got.Volume24h != q.Volume24h {
		t.Fatalf("round trip prices = %+v, want %+v", got, q)
	}
	if !got.ObservedAt.Equal(q.ObservedAt) {
		t.Fatalf("observed at = %v, want %v", got.ObservedAt, q.ObservedAt)
	}
}

func TestParseQuoteFieldsRejectsMalformed(t *testing.T) {
	cases := map[string]map[string]string{
		"missing bid": {"ask": "50000", "ts": "1"},
		"bad ask":     {"bid": "49990", "ask": "nope", "ts": "1"},
		"bad ts":      {"bid": "49990", "ask": "50000", "ts": "later"},
	}
	for name, vals := range cases {
		if _, err := parseQuoteFields("binance", "BTCUSDT", vals); err == nil {
			t.Errorf("%s: parseQuoteFields accepted %v", name, vals)
		}
	}
}

func TestParseQuoteFieldsVolumeOptional(t *testing.T) {
	vals := map[string]string{"bid": "49990", "ask": "50000", "ts": "1756634400000000000"}
	q, err := parseQuoteFields("kraken", "BTCUSDT", vals)
	if err != nil {
		t.Fatalf("parseQuoteFields: %v", err)
	}
	if q.Volume24h != 0 {
		t.Fatalf("volume = %v, want 0", q.Volume24h)
	}
	if q.ObservedAt.IsZero() || q.ObservedAt.Location() != time.UTC {
		t.Fatalf("observed at = %v", q.ObservedAt)
	}
}
