// Package kraken implements the venue adapter contract for Kraken spot using
// its REST API directly.
package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arbcorelabs/arbcore/internal/creds"
	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/venue"
)

// VenueName is the identifier this adapter reports in quotes and legs.
const VenueName = "kraken"

const defaultBaseURL = "https://api.kraken.com"

// pairNames maps normalized symbols onto Kraken pair names. Symbols not
// listed pass through unchanged.
var pairNames = map[string]string{
	"BTCUSDT": "XBTUSDT",
	"BTCUSD":  "XXBTZUSD",
	"ETHUSD":  "XETHZUSD",
	"ETHBTC":  "XETHXXBT",
}

// defaultLimits approximate Kraken's spot order minimums for the majors.
var defaultLimits = map[string]venue.Limits{
	"BTCUSDT": {MinQty: 0.0001, QtyStep: 0.00000001, MinNotional: 0.5},
	"ETHUSDT": {MinQty: 0.002, QtyStep: 0.00000001, MinNotional: 0.5},
}

// Config holds adapter construction parameters.
type Config struct {
	BaseURL        string
	Credentials    creds.Credentials
	TakerFeePct    float64
	RequestTimeout time.Duration
	Limits         map[string]venue.Limits
}

// Adapter is the Kraken spot venue adapter.
type Adapter struct {
	baseURL    string
	cfg        Config
	limits     map[string]venue.Limits
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Kraken adapter. Credentials may be empty for quote-only use.
func New(cfg Config, logger *slog.Logger) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	limits := make(map[string]venue.Limits, len(defaultLimits)+len(cfg.Limits))
	for sym, lim := range defaultLimits {
		limits[sym] = lim
	}
	for sym, lim := range cfg.Limits {
		limits[sym] = lim
	}

	return &Adapter{
		baseURL:    baseURL,
		cfg:        cfg,
		limits:     limits,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("venue", VenueName)),
	}
}

// Name returns the venue identifier.
func (a *Adapter) Name() string { return VenueName }

// TakerFeePct returns the configured taker fee percentage.
func (a *Adapter) TakerFeePct() float64 { return a.cfg.TakerFeePct }

// tickerInfo is the relevant subset of Kraken's public Ticker payload.
type tickerInfo struct {
	Ask    []string `json:"a"` // [price, whole lot volume, lot volume]
	Bid    []string `json:"b"`
	Volume []string `json:"v"` // [today, last 24 hours]
}

// FetchQuote returns the current best bid/ask for symbol.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	pair := pairName(symbol)
	body, err := a.doPublic(ctx, "/0/public/Ticker", url.Values{"pair": {pair}})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: fetch quote %s: %w", symbol, err)
	}

	var result map[string]tickerInfo
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: decode ticker: %v: %w", err, domain.ErrVenueRejected)
	}

	// Kraken may answer under a canonicalized pair name; take the first entry.
	var info tickerInfo
	found := false
	for _, v := range result {
		info = v
		found = true
		break
	}
	if !found || len(info.Ask) == 0 || len(info.Bid) == 0 {
		return domain.Quote{}, fmt.Errorf("kraken: no ticker for %s: %w", symbol, domain.ErrVenueRejected)
	}

	ask, err := strconv.ParseFloat(info.Ask[0], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: parse ask %q: %w", info.Ask[0], domain.ErrVenueRejected)
	}
	bid, err := strconv.ParseFloat(info.Bid[0], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("kraken: parse bid %q: %w", info.Bid[0], domain.ErrVenueRejected)
	}

	q := domain.Quote{
		Venue:      VenueName,
		Symbol:     symbol,
		BidPrice:   bid,
		AskPrice:   ask,
		ObservedAt: time.Now().UTC(),
	}
	if len(info.Volume) > 1 {
		if vol, err := strconv.ParseFloat(info.Volume[1], 64); err == nil {
			q.Volume24h = vol
		}
	}
	return q, nil
}

// PlaceOrder submits a market order and polls the resulting transaction for
// its executed volume and average price.
func (a *Adapter) PlaceOrder(ctx context.Context, symbol string, side domain.Side, size domain.SizeSpec) (domain.LegResult, error) {
	quote, err := a.FetchQuote(ctx, symbol)
	if err != nil {
		return venue.RejectedLeg(VenueName, symbol, side, 0, domain.LegRejected, err), err
	}
	refPrice := quote.AskPrice
	if side == domain.SideSell {
		refPrice = quote.BidPrice
	}

	qty, err := venue.NormalizeSize(size, refPrice, a.limits[symbol])
	if err != nil {
		return venue.RejectedLeg(VenueName, symbol, side, 0, domain.LegRejected, err), err
	}

	params := url.Values{
		"pair":      {pairName(symbol)},
		"type":      {string(side)},
		"ordertype": {"market"},
		"volume":    {strconv.FormatFloat(qty, 'f', -1, 64)},
	}
	body, err := a.doPrivate(ctx, "/0/private/AddOrder", params)
	if err != nil {
		err = fmt.Errorf("kraken: add order %s %s: %w", side, symbol, err)
		status := domain.LegRejected
		if isNetwork(err) {
			status = domain.LegTimedOut
		}
		return venue.RejectedLeg(VenueName, symbol, side, qty, status, err), err
	}

	var added struct {
		TxIDs []string `json:"txid"`
	}
	if err := json.Unmarshal(body, &added); err != nil || len(added.TxIDs) == 0 {
		err = fmt.Errorf("kraken: add order: missing txid: %w", domain.ErrVenueRejected)
		return venue.RejectedLeg(VenueName, symbol, side, qty, domain.LegRejected, err), err
	}

	execQty, avgPrice, err := a.queryFill(ctx, added.TxIDs[0])
	if err != nil {
		// The order was accepted; without fill data we conservatively treat
		// the leg as timed out so recovery inspects this venue.
		err = fmt.Errorf("kraken: query fill %s: %w", added.TxIDs[0], err)
		return venue.RejectedLeg(VenueName, symbol, side, qty, domain.LegTimedOut, err), err
	}

	leg := domain.LegResult{
		Venue:         VenueName,
		Symbol:        symbol,
		Side:          side,
		RequestedQty:  qty,
		ExecutedQty:   execQty,
		ExecutedPrice: avgPrice,
		FeeUSD:        avgPrice * execQty * a.cfg.TakerFeePct / 100,
		Status:        domain.LegFilled,
	}
	if execQty == 0 {
		leg.Status = domain.LegRejected
		leg.Error = "order accepted but nothing executed"
	}

	a.logger.Debug("order placed",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("requested_qty", qty),
		slog.Float64("executed_qty", execQty),
		slog.Float64("avg_price", avgPrice),
	)
	return leg, nil
}

// CancelOpenOrders cancels resting orders. With an empty symbol it uses
// CancelAll; otherwise it cancels only orders on the matching pair.
func (a *Adapter) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	if symbol == "" {
		body, err := a.doPrivate(ctx, "/0/private/CancelAll", url.Values{})
		if err != nil {
			return 0, fmt.Errorf("kraken: cancel all: %w", err)
		}
		var res struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			return 0, fmt.Errorf("kraken: decode cancel all: %w", domain.ErrVenueRejected)
		}
		return res.Count, nil
	}

	body, err := a.doPrivate(ctx, "/0/private/OpenOrders", url.Values{})
	if err != nil {
		return 0, fmt.Errorf("kraken: open orders: %w", err)
	}
	var open struct {
		Open map[string]struct {
			Descr struct {
				Pair string `json:"pair"`
			} `json:"descr"`
		} `json:"open"`
	}
	if err := json.Unmarshal(body, &open); err != nil {
		return 0, fmt.Errorf("kraken: decode open orders: %w", domain.ErrVenueRejected)
	}

	pair := pairName(symbol)
	cancelled := 0
	for txid, o := range open.Open {
		if !strings.EqualFold(o.Descr.Pair, pair) && !strings.EqualFold(o.Descr.Pair, symbol) {
			continue
		}
		if _, err := a.doPrivate(ctx, "/0/private/CancelOrder", url.Values{"txid": {txid}}); err != nil {
			return cancelled, fmt.Errorf("kraken: cancel %s: %w", txid, err)
		}
		cancelled++
	}
	return cancelled, nil
}

// fillPollAttempts and fillPollDelay bound how long queryFill waits for a
// market order to settle before reporting whatever volume it last saw.
const (
	fillPollAttempts = 3
	fillPollDelay    = 200 * time.Millisecond
)

// queryFill reads the executed volume and average price of a placed order.
// A market order can still be settling on the first read, so an empty fill
// is re-polled a few times before it is taken at face value.
func (a *Adapter) queryFill(ctx context.Context, txid string) (qty, price float64, err error) {
	for try := 0; ; try++ {
		qty, price, err = a.queryFillOnce(ctx, txid)
		if err != nil || qty > 0 || try >= fillPollAttempts-1 {
			return qty, price, err
		}
		select {
		case <-ctx.Done():
			// The order is accepted but unconfirmed; surface a network
			// failure so the leg is classified timed out, not rejected.
			return 0, 0, fmt.Errorf("%v: %w", ctx.Err(), domain.ErrNetworkFailure)
		case <-time.After(fillPollDelay):
		}
	}
}

func (a *Adapter) queryFillOnce(ctx context.Context, txid string) (qty, price float64, err error) {
	body, err := a.doPrivate(ctx, "/0/private/QueryOrders", url.Values{"txid": {txid}})
	if err != nil {
		return 0, 0, err
	}
	var orders map[string]struct {
		VolExec string `json:"vol_exec"`
		Price   string `json:"price"`
	}
	if err := json.Unmarshal(body, &orders); err != nil {
		return 0, 0, fmt.Errorf("kraken: decode query orders: %w", domain.ErrVenueRejected)
	}
	o, ok := orders[txid]
	if !ok {
		return 0, 0, fmt.Errorf("kraken: order %s not found: %w", txid, domain.ErrVenueRejected)
	}
	qty, _ = strconv.ParseFloat(o.VolExec, 64)
	price, _ = strconv.ParseFloat(o.Price, 64)
	return qty, price, nil
}

func pairName(symbol string) string {
	if p, ok := pairNames[symbol]; ok {
		return p
	}
	return symbol
}

func isNetwork(err error) bool {
	return errors.Is(err, domain.ErrNetworkFailure)
}

// Compile-time interface check.
var _ domain.VenueAdapter = (*Adapter)(nil)
