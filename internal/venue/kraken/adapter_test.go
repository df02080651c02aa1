package kraken

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/arbcorelabs/arbcore/internal/creds"
	"github.com/arbcorelabs/arbcore/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCreds() creds.Credentials {
	return creds.Credentials{
		Key:    "test-key",
		Secret: base64.StdEncoding.EncodeToString([]byte("test-secret")),
	}
}

func okResult(result string) string {
	return `{"error":[],"result":` + result + `}`
}

const tickerBTC = `{"XBTUSDT":{"a":["50000.0","1","1.0"],"b":["49990.0","1","1.0"],"v":["10.0","20.0"]}}`

// A market order can report zero executed volume on the first status read
// while it is still settling. The adapter re-polls before concluding
// anything, so a fill that lands on the second read is recorded as filled.
func TestPlaceOrderRepollsSettlingFill(t *testing.T) {
	var queries int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0/public/Ticker":
			fmt.Fprint(w, okResult(tickerBTC))
		case "/0/private/AddOrder":
			fmt.Fprint(w, okResult(`{"txid":["TX1"]}`))
		case "/0/private/QueryOrders":
			if atomic.AddInt32(&queries, 1) == 1 {
				fmt.Fprint(w, okResult(`{"TX1":{"vol_exec":"0","price":"0"}}`))
				return
			}
			fmt.Fprint(w, okResult(`{"TX1":{"vol_exec":"0.02","price":"50000.0"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Credentials: testCreds(), TakerFeePct: 0.1}, discard())

	leg, err := a.PlaceOrder(context.Background(), "BTCUSDT", domain.SideBuy, domain.BaseSize(0.02))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if leg.Status != domain.LegFilled {
		t.Fatalf("status = %s, want filled", leg.Status)
	}
	if leg.ExecutedQty != 0.02 || leg.ExecutedPrice != 50000 {
		t.Fatalf("fill = %v @ %v", leg.ExecutedQty, leg.ExecutedPrice)
	}
	if got := atomic.LoadInt32(&queries); got != 2 {
		t.Fatalf("QueryOrders polled %d times, want 2", got)
	}
}

// An order that still shows no executed volume after the bounded polls is
// recorded as rejected, and the adapter stops asking.
func TestPlaceOrderEmptyFillAfterPollsRejected(t *testing.T) {
	var queries int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/0/public/Ticker":
			fmt.Fprint(w, okResult(tickerBTC))
		case "/0/private/AddOrder":
			fmt.Fprint(w, okResult(`{"txid":["TX2"]}`))
		case "/0/private/QueryOrders":
			atomic.AddInt32(&queries, 1)
			fmt.Fprint(w, okResult(`{"TX2":{"vol_exec":"0","price":"0"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Credentials: testCreds(), TakerFeePct: 0.1}, discard())

	leg, err := a.PlaceOrder(context.Background(), "BTCUSDT", domain.SideBuy, domain.BaseSize(0.02))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if leg.Status != domain.LegRejected {
		t.Fatalf("status = %s, want rejected", leg.Status)
	}
	if got := atomic.LoadInt32(&queries); got != fillPollAttempts {
		t.Fatalf("QueryOrders polled %d times, want %d", got, fillPollAttempts)
	}
}
