package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

const (
	streamBaseURL = "wss://stream.binance.com:9443/stream"

	// readDeadline bounds how long the reader waits for a frame; Binance
	// sends a ping at least every 3 minutes.
	readDeadline = 4 * time.Minute
)

// combinedEvent is the envelope of the combined-stream endpoint.
type combinedEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// bookTickerEvent is the <symbol>@bookTicker payload.
type bookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// StreamQuotes subscribes to the combined bookTicker stream for the given
// symbols and delivers a Quote per update until the context is cancelled or
// the connection fails. The caller (the price feed) owns reconnection.
func (a *Adapter) StreamQuotes(ctx context.Context, symbols []string, handle func(domain.Quote)) error {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		streams = append(streams, strings.ToLower(sym)+"@bookTicker")
	}
	url := streamBaseURL + "?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("binance: dial stream: %w", domain.ErrNetworkFailure)
	}
	defer conn.Close()

	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	a.logger.Info("book ticker stream connected", slog.Int("symbols", len(symbols)))

	// Close the connection when the context ends so the blocked ReadMessage
	// below returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			return fmt.Errorf("binance: set read deadline: %w", domain.ErrNetworkFailure)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("binance: read stream: %v: %w", err, domain.ErrNetworkFailure)
		}

		var env combinedEvent
		if err := json.Unmarshal(msg, &env); err != nil {
			a.logger.Warn("stream: malformed frame", slog.String("error", err.Error()))
			continue
		}
		var ev bookTickerEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil || ev.Symbol == "" {
			continue
		}

		bid, errB := strconv.ParseFloat(ev.BidPrice, 64)
		ask, errA := strconv.ParseFloat(ev.AskPrice, 64)
		if errB != nil || errA != nil {
			continue
		}

		handle(domain.Quote{
			Venue:      VenueName,
			Symbol:     ev.Symbol,
			BidPrice:   bid,
			AskPrice:   ask,
			ObservedAt: time.Now().UTC(),
		})
	}
}

// Compile-time interface checks.
var (
	_ domain.VenueAdapter  = (*Adapter)(nil)
	_ domain.QuoteStreamer = (*Adapter)(nil)
)
