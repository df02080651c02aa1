// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBCORE_* environment
// variables.
type Config struct {
	Venues    map[string]VenueConfig `toml:"venues"`
	Arbitrage ArbitrageConfig        `toml:"arbitrage"`
	Execution ExecutionConfig        `toml:"execution"`
	Ledger    LedgerConfig           `toml:"ledger"`
	Redis     RedisConfig            `toml:"redis"`
	Archive   ArchiveConfig          `toml:"archive"`
	Server    ServerConfig           `toml:"server"`
	Notify    NotifyConfig           `toml:"notify"`
	Mode      string                 `toml:"mode"`
	LogLevel  string                 `toml:"log_level"`
}

// VenueConfig holds per-venue connection and trading parameters. Venues have
// independent rate limits, so the polling cadence is configured per venue.
type VenueConfig struct {
	Enabled          bool    `toml:"enabled"`
	ApiKey           string  `toml:"api_key"`
	ApiSecret        string  `toml:"api_secret"`
	EncryptedKeyPath string  `toml:"encrypted_key_path"`
	KeyPassword      string  `toml:"key_password"`
	TakerFeePct      float64 `toml:"taker_fee_pct"`
	PollIntervalMs   int     `toml:"poll_interval_ms"`
	RateLimitPerSec  float64 `toml:"rate_limit_per_sec"`
	Stream           bool    `toml:"stream"`
	RequestTimeoutMs int     `toml:"request_timeout_ms"`
}

// TriangleConfig defines one 3-edge cycle on a single venue. Each leg names
// an instrument symbol and the side traded on it; the cycle must return to
// the funding asset.
type TriangleConfig struct {
	Venue   string   `toml:"venue"`
	Symbols []string `toml:"symbols"`
	Sides   []string `toml:"sides"`
}

// ArbitrageConfig holds detection and ranking thresholds.
type ArbitrageConfig struct {
	Symbols           []string         `toml:"symbols"`
	SymbolAllowList   []string         `toml:"symbol_allow_list"`
	Triangles         []TriangleConfig `toml:"triangles"`
	MinSpreadPct      float64          `toml:"min_spread_pct"`
	MinProfitUSD      float64          `toml:"min_profit_usd"`
	MaxInvestmentUSD  float64          `toml:"max_investment_usd"`
	SlippageBufferPct float64          `toml:"slippage_buffer_pct"`
	MaxQuoteAgeMs     int              `toml:"max_quote_age_ms"`
	CooldownWindowSec int              `toml:"cooldown_window_sec"`
	TriangleStartUSD  float64          `toml:"triangle_start_usd"`
}

// ExecutionConfig holds execution coordinator parameters.
type ExecutionConfig struct {
	Enabled                 bool  `toml:"enabled"`
	LegTimeoutMs            int   `toml:"leg_timeout_ms"`
	MaxAttemptDurationMs    int   `toml:"max_attempt_duration_ms"`
	MaxConcurrentOperations int64 `toml:"max_concurrent_operations"`
	TickIntervalMs          int   `toml:"tick_interval_ms"`
}

// LedgerConfig holds PostgreSQL connection parameters for the trade ledger.
type LedgerConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	WriteRetries  int    `toml:"write_retries"`
}

// RedisConfig holds Redis connection parameters for the quote mirror and the
// recovery event bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ArchiveConfig holds S3-compatible object storage parameters for ledger
// exports.
type ArchiveConfig struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Interval       duration `toml:"interval"`
}

// ServerConfig holds monitoring HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Duration accessors for millisecond-denominated config fields.

func (c ArbitrageConfig) MaxQuoteAge() time.Duration {
	return time.Duration(c.MaxQuoteAgeMs) * time.Millisecond
}

func (c ArbitrageConfig) CooldownWindow() time.Duration {
	return time.Duration(c.CooldownWindowSec) * time.Second
}

func (c ExecutionConfig) LegTimeout() time.Duration {
	return time.Duration(c.LegTimeoutMs) * time.Millisecond
}

func (c ExecutionConfig) MaxAttemptDuration() time.Duration {
	return time.Duration(c.MaxAttemptDurationMs) * time.Millisecond
}

func (c ExecutionConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c VenueConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c VenueConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Venues: map[string]VenueConfig{
			"binance": {
				Enabled:          true,
				TakerFeePct:      0.1,
				PollIntervalMs:   1000,
				RateLimitPerSec:  10,
				RequestTimeoutMs: 5000,
			},
			"kraken": {
				Enabled:          true,
				TakerFeePct:      0.26,
				PollIntervalMs:   2000,
				RateLimitPerSec:  1,
				RequestTimeoutMs: 5000,
			},
		},
		Arbitrage: ArbitrageConfig{
			Symbols:           []string{"BTCUSDT", "ETHUSDT"},
			MinSpreadPct:      0.3,
			MinProfitUSD:      2.0,
			MaxInvestmentUSD:  1000,
			SlippageBufferPct: 0.1,
			MaxQuoteAgeMs:     3000,
			CooldownWindowSec: 5,
			TriangleStartUSD:  1000,
		},
		Execution: ExecutionConfig{
			Enabled:                 false,
			LegTimeoutMs:            5000,
			MaxAttemptDurationMs:    15000,
			MaxConcurrentOperations: 3,
			TickIntervalMs:          1000,
		},
		Ledger: LedgerConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbcore",
			User:          "arbcore",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			WriteRetries:  4,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Archive: ArchiveConfig{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbcore-ledger",
			ForcePathStyle: true,
			Interval:       duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"partial_fill", "ledger_write_failed", "attempt_completed", "attempt_failed"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":    true,
	"detect": true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validSides enumerates the accepted leg sides in triangle definitions.
var validSides = map[string]bool{
	"buy":  true,
	"sell": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, detect, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	enabled := 0
	for name, v := range c.Venues {
		if !v.Enabled {
			continue
		}
		enabled++
		if v.TakerFeePct < 0 {
			errs = append(errs, fmt.Sprintf("venue %s: taker_fee_pct must be >= 0", name))
		}
		if v.PollIntervalMs <= 0 && !v.Stream {
			errs = append(errs, fmt.Sprintf("venue %s: poll_interval_ms must be > 0 when not streaming", name))
		}
		if v.RequestTimeoutMs <= 0 {
			errs = append(errs, fmt.Sprintf("venue %s: request_timeout_ms must be > 0", name))
		}
		if c.Execution.Enabled && c.Mode == "run" {
			if v.ApiKey == "" && v.EncryptedKeyPath == "" {
				errs = append(errs, fmt.Sprintf("venue %s: api_key or encrypted_key_path is required when execution is enabled", name))
			}
			if v.EncryptedKeyPath != "" && v.KeyPassword == "" {
				errs = append(errs, fmt.Sprintf("venue %s: key_password is required when encrypted_key_path is set", name))
			}
		}
	}
	if enabled == 0 && c.Mode != "server" {
		errs = append(errs, "venues: at least one venue must be enabled")
	}

	if len(c.Arbitrage.Symbols) == 0 && len(c.Arbitrage.Triangles) == 0 {
		errs = append(errs, "arbitrage: symbols or triangles must be configured")
	}
	if c.Arbitrage.MinSpreadPct < 0 {
		errs = append(errs, "arbitrage: min_spread_pct must be >= 0")
	}
	if c.Arbitrage.MinProfitUSD < 0 {
		errs = append(errs, "arbitrage: min_profit_usd must be >= 0")
	}
	if c.Arbitrage.MaxInvestmentUSD <= 0 {
		errs = append(errs, "arbitrage: max_investment_usd must be > 0")
	}
	if c.Arbitrage.MaxQuoteAgeMs <= 0 {
		errs = append(errs, "arbitrage: max_quote_age_ms must be > 0")
	}
	for i, tri := range c.Arbitrage.Triangles {
		if len(tri.Symbols) != 3 || len(tri.Sides) != 3 {
			errs = append(errs, fmt.Sprintf("arbitrage: triangle %d must have exactly 3 symbols and 3 sides", i))
			continue
		}
		if tri.Venue == "" {
			errs = append(errs, fmt.Sprintf("arbitrage: triangle %d: venue must not be empty", i))
		}
		for _, side := range tri.Sides {
			if !validSides[strings.ToLower(side)] {
				errs = append(errs, fmt.Sprintf("arbitrage: triangle %d: invalid side %q", i, side))
			}
		}
	}

	if c.Execution.LegTimeoutMs <= 0 {
		errs = append(errs, "execution: leg_timeout_ms must be > 0")
	}
	if c.Execution.MaxAttemptDurationMs < c.Execution.LegTimeoutMs {
		errs = append(errs, "execution: max_attempt_duration_ms must be >= leg_timeout_ms")
	}
	if c.Execution.MaxConcurrentOperations < 1 {
		errs = append(errs, "execution: max_concurrent_operations must be >= 1")
	}
	if c.Execution.TickIntervalMs <= 0 {
		errs = append(errs, "execution: tick_interval_ms must be > 0")
	}

	if strings.TrimSpace(c.Ledger.DSN) == "" {
		if c.Ledger.Host == "" {
			errs = append(errs, "ledger: host must not be empty (or set ledger.dsn)")
		}
		if c.Ledger.Port <= 0 || c.Ledger.Port > 65535 {
			errs = append(errs, fmt.Sprintf("ledger: port must be 1-65535, got %d", c.Ledger.Port))
		}
		if c.Ledger.Database == "" {
			errs = append(errs, "ledger: database must not be empty")
		}
	}
	if c.Ledger.PoolMaxConns < 1 {
		errs = append(errs, "ledger: pool_max_conns must be >= 1")
	}
	if c.Ledger.PoolMinConns < 0 {
		errs = append(errs, "ledger: pool_min_conns must be >= 0")
	}
	if c.Ledger.PoolMinConns > c.Ledger.PoolMaxConns {
		errs = append(errs, "ledger: pool_min_conns must not exceed pool_max_conns")
	}
	if c.Ledger.WriteRetries < 0 {
		errs = append(errs, "ledger: write_retries must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Archive.Enabled {
		if c.Archive.Endpoint == "" {
			errs = append(errs, "archive: endpoint must not be empty")
		}
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket must not be empty")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
