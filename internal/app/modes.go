package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbcorelabs/arbcore/internal/server"
	"github.com/arbcorelabs/arbcore/internal/server/handler"
	"github.com/arbcorelabs/arbcore/internal/store/postgres"
)

// RunMode is the full engine: price feed, auto-execution loop, monitoring
// server, and the ledger archiver when configured.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCancel(deps.Feed.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(deps.Loop.Run(gctx)) })

	if deps.Archiver != nil {
		g.Go(func() error { return ignoreCancel(deps.Archiver.Run(gctx)) })
	}
	if a.cfg.Server.Enabled {
		a.startServer(gctx, g, deps)
	}

	return g.Wait()
}

// DetectMode runs the feed and the detection cycle with execution disabled:
// candidates are logged, nothing is submitted to a venue.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	deps.Loop.SetEnabled(false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(deps.Feed.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(deps.Loop.Run(gctx)) })
	if a.cfg.Server.Enabled {
		a.startServer(gctx, g, deps)
	}
	return g.Wait()
}

// ServerMode serves the monitoring API over the live feed without running
// the detection loop.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(deps.Feed.Run(gctx)) })
	a.startServer(gctx, g, deps)
	return g.Wait()
}

// startServer builds the handler set, starts the HTTP server in the group,
// and arranges a graceful shutdown when the group context ends.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	pingers := map[string]handler.Pinger{}
	if deps.Postgres != nil {
		pingers["postgres"] = pgPinger{deps.Postgres}
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	venueNames := make([]string, 0, len(deps.Venues))
	for name := range deps.Venues {
		venueNames = append(venueNames, name)
	}

	var archiveHandler *handler.ArchiveHandler
	if deps.Archives != nil {
		archiveHandler = handler.NewArchiveHandler(deps.Archives, a.logger)
	}

	var loopCtl handler.LoopControl
	var loopHandler *handler.LoopHandler
	if a.cfg.Mode != "server" {
		loopCtl = deps.Loop
		loopHandler = handler.NewLoopHandler(deps.Loop, a.logger)
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:        handler.NewHealthHandler(pingers, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, venueNames, loopCtl),
		Quotes:        handler.NewQuotesHandler(deps.Feed),
		Opportunities: handler.NewOpportunitiesHandler(deps.Feed, deps.Detection),
		Attempts:      handler.NewAttemptsHandler(deps.Ledger, a.logger),
		Archive:       archiveHandler,
		Loop:          loopHandler,
	}, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})
}

// pgPinger adapts the postgres client to the health handler's interface.
type pgPinger struct {
	client *postgres.Client
}

func (p pgPinger) Ping(ctx context.Context) error {
	return p.client.Pool().Ping(ctx)
}

// ignoreCancel converts a context cancellation into a clean exit so a normal
// shutdown does not surface as an error from the group.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
