// Package feed aggregates top-of-book quotes from every configured venue
// into a single in-memory view the detection cycle snapshots from.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arbcorelabs/arbcore/internal/domain"
)

// Source describes one venue the aggregator pulls quotes from.
type Source struct {
	Adapter      domain.VenueAdapter
	Symbols      []string
	PollInterval time.Duration
	RateLimit    rate.Limit
	// Stream opts in to the venue's push feed when the adapter supports it.
	Stream bool
}

// Aggregator maintains the freshest quote per (venue, symbol). Reads never
// block on venue I/O; writers replace entries in place under a short lock.
type Aggregator struct {
	sources []Source
	mirror  domain.QuoteCache
	logger  *slog.Logger

	mu     sync.RWMutex
	quotes map[domain.QuoteKey]domain.Quote
}

// New creates an aggregator over the given sources. mirror may be nil.
func New(sources []Source, mirror domain.QuoteCache, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		sources: sources,
		mirror:  mirror,
		logger:  logger.With(slog.String("component", "feed")),
		quotes:  make(map[domain.QuoteKey]domain.Quote),
	}
}

// Run starts one goroutine per source and blocks until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, src := range a.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if streamer, ok := src.Adapter.(domain.QuoteStreamer); ok && src.Stream {
				a.streamLoop(ctx, src, streamer)
				return
			}
			a.pollLoop(ctx, src)
		}(src)
	}
	wg.Wait()
	return ctx.Err()
}

// Snapshot returns a point-in-time copy of every known quote. The copy is
// detached: later feed updates do not mutate it.
func (a *Aggregator) Snapshot() domain.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	quotes := make(map[domain.QuoteKey]domain.Quote, len(a.quotes))
	for k, v := range a.quotes {
		quotes[k] = v
	}
	return domain.Snapshot{Quotes: quotes, TakenAt: time.Now().UTC()}
}

// Store records a quote, keeping only the newest per (venue, symbol).
func (a *Aggregator) Store(ctx context.Context, q domain.Quote) {
	key := domain.QuoteKey{Venue: q.Venue, Symbol: q.Symbol}

	a.mu.Lock()
	prev, ok := a.quotes[key]
	if ok && prev.ObservedAt.After(q.ObservedAt) {
		a.mu.Unlock()
		return
	}
	a.quotes[key] = q
	a.mu.Unlock()

	if a.mirror != nil {
		mirrorCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		if err := a.mirror.SetQuote(mirrorCtx, q); err != nil {
			a.logger.Debug("quote mirror write failed", slog.String("error", err.Error()))
		}
		cancel()
	}
}

func (a *Aggregator) pollLoop(ctx context.Context, src Source) {
	interval := src.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	var limiter *rate.Limiter
	if src.RateLimit > 0 {
		limiter = rate.NewLimiter(src.RateLimit, 1)
	}

	logger := a.logger.With(slog.String("venue", src.Adapter.Name()))
	logger.Info("polling quotes",
		slog.Duration("interval", interval),
		slog.Int("symbols", len(src.Symbols)),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, symbol := range src.Symbols {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			q, err := src.Adapter.FetchQuote(ctx, symbol)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("fetch quote failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
				continue
			}
			a.Store(ctx, q)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// streamLoop keeps the venue's push feed connected, reconnecting with a
// capped backoff after failures.
func (a *Aggregator) streamLoop(ctx context.Context, src Source, streamer domain.QuoteStreamer) {
	logger := a.logger.With(slog.String("venue", src.Adapter.Name()))
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		logger.Info("connecting quote stream", slog.Int("symbols", len(src.Symbols)))
		start := time.Now()
		err := streamer.StreamQuotes(ctx, src.Symbols, func(q domain.Quote) {
			a.Store(ctx, q)
		})
		if ctx.Err() != nil {
			return
		}
		if time.Since(start) > time.Minute {
			backoff = time.Second
		}
		logger.Warn("quote stream disconnected",
			slog.String("error", errString(err)),
			slog.Duration("retry_in", backoff),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "eof"
	}
	return err.Error()
}
