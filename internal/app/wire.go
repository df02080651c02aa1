package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	s3blob "github.com/arbcorelabs/arbcore/internal/blob/s3"
	"github.com/arbcorelabs/arbcore/internal/cache/redis"
	"github.com/arbcorelabs/arbcore/internal/config"
	"github.com/arbcorelabs/arbcore/internal/creds"
	"github.com/arbcorelabs/arbcore/internal/detector"
	"github.com/arbcorelabs/arbcore/internal/domain"
	"github.com/arbcorelabs/arbcore/internal/exec"
	"github.com/arbcorelabs/arbcore/internal/feed"
	"github.com/arbcorelabs/arbcore/internal/ledger"
	"github.com/arbcorelabs/arbcore/internal/loop"
	"github.com/arbcorelabs/arbcore/internal/notify"
	"github.com/arbcorelabs/arbcore/internal/ranker"
	"github.com/arbcorelabs/arbcore/internal/store/postgres"
	"github.com/arbcorelabs/arbcore/internal/venue/binance"
	"github.com/arbcorelabs/arbcore/internal/venue/kraken"
	"github.com/arbcorelabs/arbcore/internal/venue/paper"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Venues      map[string]domain.VenueAdapter
	Feed        *feed.Aggregator
	Detection   detector.Params
	Ranker      *ranker.Ranker
	Coordinator *exec.Coordinator
	Loop        *loop.Loop
	Ledger      *ledger.Ledger

	QuoteCache domain.QuoteCache
	EventBus   domain.EventBus
	Notifier   *notify.Notifier
	Archiver   *s3blob.LedgerArchiver
	Archives   domain.BlobReader

	Postgres *postgres.Client
	Redis    *redis.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Trade ledger: PostgreSQL when configured, in-memory otherwise.
	// Detect-only and server-only runs record no trades, so they skip the
	// database connection entirely. ---
	var attemptStore domain.AttemptStore
	if cfg.Mode == "run" && (cfg.Ledger.DSN != "" || cfg.Ledger.Database != "") {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Ledger.DSN,
			Host:     cfg.Ledger.Host,
			Port:     cfg.Ledger.Port,
			Database: cfg.Ledger.Database,
			User:     cfg.Ledger.User,
			Password: cfg.Ledger.Password,
			SSLMode:  cfg.Ledger.SSLMode,
			MaxConns: cfg.Ledger.PoolMaxConns,
			MinConns: cfg.Ledger.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Ledger.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Postgres = pgClient
		attemptStore = postgres.NewAttemptStore(pgClient.Pool())
	} else {
		logger.Warn("no ledger database configured, trade records are in-memory only")
		attemptStore = ledger.NewMemoryStore()
	}
	deps.Ledger = ledger.New(attemptStore, logger,
		ledger.WithRetries(cfg.Ledger.WriteRetries),
		ledger.WithAlerter(deps.Notifier),
	)

	// --- Redis: quote mirror and recovery event bus ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
	}

	// --- S3 ledger archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewLedgerArchiver(
			s3blob.NewWriter(s3Client),
			deps.Ledger,
			cfg.Archive.Interval.Duration,
			logger,
		)
		deps.Archives = s3blob.NewReader(s3Client)
	}

	// --- Venue adapters ---
	deps.Venues = make(map[string]domain.VenueAdapter)
	for name, vc := range cfg.Venues {
		if !vc.Enabled {
			continue
		}
		adapter, err := buildVenue(name, vc, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: venue %s: %w", name, err)
		}
		deps.Venues[name] = adapter
	}
	if len(deps.Venues) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: no venues enabled")
	}

	// --- Price feed ---
	sources := make([]feed.Source, 0, len(deps.Venues))
	for name, adapter := range deps.Venues {
		vc := cfg.Venues[name]
		sources = append(sources, feed.Source{
			Adapter:      adapter,
			Symbols:      feedSymbols(cfg, name),
			PollInterval: vc.PollInterval(),
			RateLimit:    rate.Limit(vc.RateLimitPerSec),
			Stream:       vc.Stream,
		})
	}
	deps.Feed = feed.New(sources, deps.QuoteCache, logger)

	// --- Detection, ranking, execution ---
	deps.Detection = detectionParams(cfg, deps.Venues)
	deps.Ranker = ranker.New(ranker.Params{
		MinSpreadPct:   cfg.Arbitrage.MinSpreadPct,
		MinProfitUSD:   cfg.Arbitrage.MinProfitUSD,
		AllowList:      cfg.Arbitrage.SymbolAllowList,
		CooldownWindow: cfg.Arbitrage.CooldownWindow(),
		MaxQuoteAge:    cfg.Arbitrage.MaxQuoteAge(),
	}, deps.Ledger, logger)

	deps.Coordinator = exec.New(
		deps.Venues,
		exec.NewLockTable(),
		deps.Ledger,
		notify.NewAttemptNotifier(deps.Notifier),
		deps.EventBus,
		exec.Config{
			LegTimeout:         cfg.Execution.LegTimeout(),
			MaxAttemptDuration: cfg.Execution.MaxAttemptDuration(),
		},
		logger,
	)

	deps.Loop = loop.New(deps.Feed, deps.Detection, deps.Ranker, deps.Coordinator, loop.Config{
		TickInterval:            cfg.Execution.TickInterval(),
		MaxConcurrentOperations: cfg.Execution.MaxConcurrentOperations,
		StartEnabled:            cfg.Execution.Enabled,
	}, logger)

	return deps, cleanup, nil
}

// buildVenue constructs one venue adapter, resolving credentials first.
func buildVenue(name string, vc config.VenueConfig, logger *slog.Logger) (domain.VenueAdapter, error) {
	credentials, err := creds.Load(creds.Source{
		Key:           vc.ApiKey,
		Secret:        vc.ApiSecret,
		EncryptedPath: vc.EncryptedKeyPath,
		Password:      vc.KeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	switch name {
	case binance.VenueName:
		return binance.New(binance.Config{
			Credentials:    credentials,
			TakerFeePct:    vc.TakerFeePct,
			RequestTimeout: vc.RequestTimeout(),
		}, logger), nil
	case kraken.VenueName:
		return kraken.New(kraken.Config{
			Credentials:    credentials,
			TakerFeePct:    vc.TakerFeePct,
			RequestTimeout: vc.RequestTimeout(),
		}, logger), nil
	case "paper":
		return paper.New(name, vc.TakerFeePct), nil
	default:
		return nil, fmt.Errorf("unknown venue %q", name)
	}
}

// feedSymbols returns the symbols venue name must poll: the pairwise symbol
// list plus any triangle legs configured on that venue.
func feedSymbols(cfg *config.Config, venueName string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(symbol string) {
		if !seen[symbol] {
			seen[symbol] = true
			out = append(out, symbol)
		}
	}
	for _, s := range cfg.Arbitrage.Symbols {
		add(s)
	}
	for _, tri := range cfg.Arbitrage.Triangles {
		if tri.Venue != venueName {
			continue
		}
		for _, s := range tri.Symbols {
			add(s)
		}
	}
	return out
}

// detectionParams translates configuration into detector parameters.
func detectionParams(cfg *config.Config, venues map[string]domain.VenueAdapter) detector.Params {
	fees := make(map[string]float64, len(venues))
	for name, adapter := range venues {
		fees[name] = adapter.TakerFeePct()
	}

	var triangles []detector.Triangle
	for _, tc := range cfg.Arbitrage.Triangles {
		if len(tc.Symbols) != 3 || len(tc.Sides) != 3 {
			continue
		}
		if _, ok := venues[tc.Venue]; !ok {
			continue
		}
		tri := detector.Triangle{Venue: tc.Venue}
		for i := 0; i < 3; i++ {
			tri.Legs[i] = detector.TriangleLeg{
				Symbol: tc.Symbols[i],
				Side:   domain.Side(tc.Sides[i]),
			}
		}
		triangles = append(triangles, tri)
	}

	return detector.Params{
		Symbols:           cfg.Arbitrage.Symbols,
		VenueFees:         fees,
		MaxInvestmentUSD:  cfg.Arbitrage.MaxInvestmentUSD,
		SlippageBufferPct: cfg.Arbitrage.SlippageBufferPct,
		MaxQuoteAge:       cfg.Arbitrage.MaxQuoteAge(),
		Triangles:         triangles,
		TriangleStartUSD:  cfg.Arbitrage.TriangleStartUSD,
	}
}
