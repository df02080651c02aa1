// Package binance implements the venue adapter contract for Binance spot
// using the adshao/go-binance SDK for REST and a raw websocket connection for
// streaming book tickers.
package binance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/arbcorelabs/arbcore/internal/creds"
	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/venue"
)

// VenueName is the identifier this adapter reports in quotes and legs.
const VenueName = "binance"

// defaultLimits approximate Binance spot constraints for the majors. Limits
// for symbols not listed fall back to the zero value (no local rejection).
var defaultLimits = map[string]venue.Limits{
	"BTCUSDT": {MinQty: 0.00001, QtyStep: 0.00001, MinNotional: 5},
	"ETHUSDT": {MinQty: 0.0001, QtyStep: 0.0001, MinNotional: 5},
	"ETHBTC":  {MinQty: 0.0001, QtyStep: 0.0001, MinNotional: 0.0001},
}

// Config holds adapter construction parameters.
type Config struct {
	Credentials    creds.Credentials
	TakerFeePct    float64
	RequestTimeout time.Duration
	// Limits overrides defaultLimits per symbol when set.
	Limits map[string]venue.Limits
}

// Adapter is the Binance spot venue adapter.
type Adapter struct {
	client *binance.Client
	cfg    Config
	limits map[string]venue.Limits
	logger *slog.Logger
}

// New creates a Binance adapter. Credentials may be empty for quote-only use.
func New(cfg Config, logger *slog.Logger) *Adapter {
	client := binance.NewClient(cfg.Credentials.Key, cfg.Credentials.Secret)

	limits := make(map[string]venue.Limits, len(defaultLimits)+len(cfg.Limits))
	for sym, lim := range defaultLimits {
		limits[sym] = lim
	}
	for sym, lim := range cfg.Limits {
		limits[sym] = lim
	}

	return &Adapter{
		client: client,
		cfg:    cfg,
		limits: limits,
		logger: logger.With(slog.String("venue", VenueName)),
	}
}

// Name returns the venue identifier.
func (a *Adapter) Name() string { return VenueName }

// TakerFeePct returns the configured taker fee percentage.
func (a *Adapter) TakerFeePct() float64 { return a.cfg.TakerFeePct }

// FetchQuote returns the current best bid/ask for symbol.
func (a *Adapter) FetchQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	tickers, err := a.client.NewListBookTickersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: fetch quote %s: %w", symbol, venue.ClassifyError(err))
	}
	if len(tickers) == 0 {
		return domain.Quote{}, fmt.Errorf("binance: no book ticker for %s: %w", symbol, domain.ErrVenueRejected)
	}

	t := tickers[0]
	bid, err := strconv.ParseFloat(t.BidPrice, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: parse bid %q: %w", t.BidPrice, domain.ErrVenueRejected)
	}
	ask, err := strconv.ParseFloat(t.AskPrice, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("binance: parse ask %q: %w", t.AskPrice, domain.ErrVenueRejected)
	}

	return domain.Quote{
		Venue:      VenueName,
		Symbol:     symbol,
		BidPrice:   bid,
		AskPrice:   ask,
		ObservedAt: time.Now().UTC(),
	}, nil
}

// PlaceOrder submits a market order. Sizes are normalized against the
// symbol's lot constraints before submission; undersized orders are rejected
// locally with ErrSizeBelowMinimum.
func (a *Adapter) PlaceOrder(ctx context.Context, symbol string, side domain.Side, size domain.SizeSpec) (domain.LegResult, error) {
	refPrice, err := a.referencePrice(ctx, symbol, side)
	if err != nil {
		return venue.RejectedLeg(VenueName, symbol, side, 0, domain.LegRejected, err), err
	}

	qty, err := venue.NormalizeSize(size, refPrice, a.limits[symbol])
	if err != nil {
		return venue.RejectedLeg(VenueName, symbol, side, 0, domain.LegRejected, err), err
	}

	sideType := binance.SideTypeBuy
	if side == domain.SideSell {
		sideType = binance.SideTypeSell
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	res, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType).
		Type(binance.OrderTypeMarket).
		Quantity(formatQty(qty)).
		Do(ctx)
	if err != nil {
		err = venue.ClassifyError(err)
		status := domain.LegRejected
		if isTimeout(err) {
			status = domain.LegTimedOut
		}
		return venue.RejectedLeg(VenueName, symbol, side, qty, status, err),
			fmt.Errorf("binance: place order %s %s: %w", side, symbol, err)
	}

	executedQty, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)

	avgPrice := 0.0
	if executedQty > 0 {
		avgPrice = quoteQty / executedQty
	}

	feeUSD := 0.0
	for _, fill := range res.Fills {
		price, _ := strconv.ParseFloat(fill.Price, 64)
		qty, _ := strconv.ParseFloat(fill.Quantity, 64)
		feeUSD += price * qty * a.cfg.TakerFeePct / 100
	}

	leg := domain.LegResult{
		Venue:         VenueName,
		Symbol:        symbol,
		Side:          side,
		RequestedQty:  qty,
		ExecutedQty:   executedQty,
		ExecutedPrice: avgPrice,
		FeeUSD:        feeUSD,
		Status:        domain.LegFilled,
	}
	if executedQty == 0 {
		leg.Status = domain.LegRejected
		leg.Error = "order accepted but nothing executed"
	}

	a.logger.Debug("order placed",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("requested_qty", qty),
		slog.Float64("executed_qty", executedQty),
		slog.Float64("avg_price", avgPrice),
	)
	return leg, nil
}

// CancelOpenOrders cancels resting orders for symbol (or every tracked
// symbol when empty) and returns the number cancelled.
func (a *Adapter) CancelOpenOrders(ctx context.Context, symbol string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout())
	defer cancel()

	svc := a.client.NewListOpenOrdersService()
	if symbol != "" {
		svc = svc.Symbol(symbol)
	}
	open, err := svc.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance: list open orders: %w", venue.ClassifyError(err))
	}

	cancelled := 0
	for _, o := range open {
		_, err := a.client.NewCancelOrderService().
			Symbol(o.Symbol).
			OrderID(o.OrderID).
			Do(ctx)
		if err != nil {
			return cancelled, fmt.Errorf("binance: cancel order %d: %w", o.OrderID, venue.ClassifyError(err))
		}
		cancelled++
	}
	return cancelled, nil
}

// referencePrice fetches the side-appropriate top-of-book price used for
// quote-amount conversion and local size validation.
func (a *Adapter) referencePrice(ctx context.Context, symbol string, side domain.Side) (float64, error) {
	q, err := a.FetchQuote(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if side == domain.SideBuy {
		return q.AskPrice, nil
	}
	return q.BidPrice, nil
}

func (a *Adapter) timeout() time.Duration {
	if a.cfg.RequestTimeout > 0 {
		return a.cfg.RequestTimeout
	}
	return 5 * time.Second
}

// formatQty renders a quantity without scientific notation, which the
// exchange API rejects.
func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func isTimeout(err error) bool {
	return errors.Is(err, domain.ErrNetworkFailure)
}
