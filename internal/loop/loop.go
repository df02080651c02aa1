// Package loop runs the tick-based detect, rank, execute cycle.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/arbcorelabs/arbcore/internal/detector"
	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/exec"
	"github.com/arbcorelabs/arbcore/internal/feed"
	"github.com/arbcorelabs/arbcore/internal/ranker"
)

// Config holds loop parameters.
type Config struct {
	TickInterval            time.Duration
	MaxConcurrentOperations int64
	// StartEnabled controls whether attempts are submitted from the first
	// tick; when false the loop still detects and logs candidates.
	StartEnabled bool
}

// Loop pulls a snapshot each tick, runs detection and ranking, and submits
// candidates to the coordinator without waiting for them to finish. It holds
// no per-opportunity state; coordination lives in the coordinator's locks
// and the ledger.
type Loop struct {
	feed     *feed.Aggregator
	params   detector.Params
	ranker   *ranker.Ranker
	coord    *exec.Coordinator
	sem      *semaphore.Weighted
	cfg      Config
	logger   *slog.Logger
	enabled  atomic.Bool
	inFlight sync.WaitGroup
}

// New creates a Loop.
func New(fd *feed.Aggregator, params detector.Params, rk *ranker.Ranker, coord *exec.Coordinator, cfg Config, logger *slog.Logger) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxConcurrentOperations <= 0 {
		cfg.MaxConcurrentOperations = 1
	}
	l := &Loop{
		feed:   fd,
		params: params,
		ranker: rk,
		coord:  coord,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentOperations),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "loop")),
	}
	l.enabled.Store(cfg.StartEnabled)
	return l
}

// SetEnabled toggles submission of new attempts. Disabling never cancels
// attempts already executing; in-flight exposure always resolves to a
// terminal state.
func (l *Loop) SetEnabled(on bool) {
	was := l.enabled.Swap(on)
	if was != on {
		l.logger.Info("auto-execution toggled", slog.Bool("enabled", on))
	}
}

// Enabled reports whether new attempts may be submitted.
func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Run ticks until ctx is cancelled, then waits for in-flight attempts to
// reach a terminal state before returning.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("loop started",
		slog.Duration("tick", l.cfg.TickInterval),
		slog.Int64("max_concurrent", l.cfg.MaxConcurrentOperations),
		slog.Bool("enabled", l.Enabled()),
	)

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping, draining in-flight attempts")
			l.inFlight.Wait()
			return ctx.Err()
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	snap := l.feed.Snapshot()
	candidates := l.ranker.Rank(ctx, detector.Detect(snap, l.params), snap.TakenAt)
	if len(candidates) == 0 {
		return
	}

	if !l.Enabled() {
		for _, op := range candidates {
			l.logger.Info("candidate found (execution disabled)",
				slog.String("kind", string(op.Kind)),
				slog.Any("symbols", op.Symbols()),
				slog.Float64("net_profit_usd", op.EstimatedNetProfitUSD),
			)
		}
		return
	}

	for _, op := range candidates {
		if !l.sem.TryAcquire(1) {
			l.logger.Debug("concurrency cap reached, deferring remaining candidates")
			return
		}
		l.inFlight.Add(1)
		// Attempts run against a context that survives loop shutdown so a
		// cancel cannot abandon in-flight capital.
		execCtx := context.WithoutCancel(ctx)
		go func(op domain.Opportunity) {
			defer l.inFlight.Done()
			defer l.sem.Release(1)
			if _, err := l.coord.Execute(execCtx, op); err != nil {
				l.logger.Debug("submission rejected", slog.String("error", err.Error()))
			}
		}(op)
	}
}
