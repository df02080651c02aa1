package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// quoteTTL bounds how long a mirrored quote survives without refresh. Stale
// entries expire on their own instead of lingering after a venue goes quiet.
const quoteTTL = time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. Each quote is
// stored at key "quote:{venue}:{symbol}" with fields "bid", "ask", "vol"
// and "ts" (Unix nanosecond timestamp).
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(venue, symbol string) string {
	return "quote:" + venue + ":" + symbol
}

// quoteFields encodes a Quote as the hash fields stored under its key.
func quoteFields(q domain.Quote) map[string]interface{} {
	return map[string]interface{}{
		"bid": strconv.FormatFloat(q.BidPrice, 'f', -1, 64),
		"ask": strconv.FormatFloat(q.AskPrice, 'f', -1, 64),
		"vol": strconv.FormatFloat(q.Volume24h, 'f', -1, 64),
		"ts":  strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
}

// SetQuote stores the latest quote for (venue, symbol).
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Venue, q.Symbol)
	fields := quoteFields(q)
	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the latest mirrored quote for (venue, symbol). It
// returns domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) GetQuote(ctx context.Context, venue, symbol string) (domain.Quote, error) {
	key := quoteKey(venue, symbol)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}
	q, err := parseQuoteFields(venue, symbol, vals)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: %s: %w", key, err)
	}
	return q, nil
}

// parseQuoteFields reconstructs a Quote from the hash fields written by
// SetQuote. The volume field is optional; bid, ask, and ts are not.
func parseQuoteFields(venue, symbol string, vals map[string]string) (domain.Quote, error) {
	q := domain.Quote{Venue: venue, Symbol: symbol}
	var err error
	if q.BidPrice, err = strconv.ParseFloat(vals["bid"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("parse bid %q: %w", vals["bid"], err)
	}
	if q.AskPrice, err = strconv.ParseFloat(vals["ask"], 64); err != nil {
		return domain.Quote{}, fmt.Errorf("parse ask %q: %w", vals["ask"], err)
	}
	if vol, ok := vals["vol"]; ok {
		q.Volume24h, _ = strconv.ParseFloat(vol, 64)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse ts %q: %w", vals["ts"], err)
	}
	q.ObservedAt = time.Unix(0, tsNano).UTC()
	return q, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
