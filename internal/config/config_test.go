package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Mode != "run" || cfg.Execution.Enabled {
		t.Fatalf("unexpected defaults: mode=%s execution=%v", cfg.Mode, cfg.Execution.Enabled)
	}
	if cfg.Arbitrage.MaxQuoteAge() != 3*time.Second {
		t.Fatalf("max quote age = %v", cfg.Arbitrage.MaxQuoteAge())
	}
	if cfg.Arbitrage.CooldownWindow() != 5*time.Second {
		t.Fatalf("cooldown = %v", cfg.Arbitrage.CooldownWindow())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"no venues", func(c *Config) {
			for name, v := range c.Venues {
				v.Enabled = false
				c.Venues[name] = v
			}
		}, "at least one venue"},
		{"no symbols", func(c *Config) {
			c.Arbitrage.Symbols = nil
			c.Arbitrage.Triangles = nil
		}, "symbols or triangles"},
		{"negative investment", func(c *Config) { c.Arbitrage.MaxInvestmentUSD = 0 }, "max_investment_usd"},
		{"short attempt duration", func(c *Config) {
			c.Execution.MaxAttemptDurationMs = 100
			c.Execution.LegTimeoutMs = 5000
		}, "max_attempt_duration_ms"},
		{"bad triangle", func(c *Config) {
			c.Arbitrage.Triangles = []TriangleConfig{{Venue: "binance", Symbols: []string{"BTCUSDT"}, Sides: []string{"buy"}}}
		}, "exactly 3 symbols"},
		{"bad triangle side", func(c *Config) {
			c.Arbitrage.Triangles = []TriangleConfig{{
				Venue:   "binance",
				Symbols: []string{"BTCUSDT", "ETHBTC", "ETHUSDT"},
				Sides:   []string{"buy", "hold", "sell"},
			}}
		}, "invalid side"},
		{"missing creds with execution", func(c *Config) {
			c.Execution.Enabled = true
		}, "api_key or encrypted_key_path"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "detect"
log_level = "debug"

[arbitrage]
symbols = ["SOLUSDT"]
min_spread_pct = 0.5

[venues.binance]
enabled = true
taker_fee_pct = 0.075
poll_interval_ms = 500
request_timeout_ms = 3000

[venues.kraken]
enabled = false

[[arbitrage.triangles]]
venue = "binance"
symbols = ["BTCUSDT", "ETHBTC", "ETHUSDT"]
sides = ["buy", "buy", "sell"]

[archive]
interval = "30m"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "detect" || cfg.LogLevel != "debug" {
		t.Fatalf("top-level not applied: %+v", cfg.Mode)
	}
	if got := cfg.Arbitrage.Symbols; len(got) != 1 || got[0] != "SOLUSDT" {
		t.Fatalf("symbols = %v", got)
	}
	if cfg.Arbitrage.MinSpreadPct != 0.5 {
		t.Fatalf("min spread = %v", cfg.Arbitrage.MinSpreadPct)
	}
	// Untouched fields keep their defaults.
	if cfg.Arbitrage.MinProfitUSD != 2.0 {
		t.Fatalf("min profit lost its default: %v", cfg.Arbitrage.MinProfitUSD)
	}
	if cfg.Venues["binance"].TakerFeePct != 0.075 {
		t.Fatalf("binance fee = %v", cfg.Venues["binance"].TakerFeePct)
	}
	if cfg.Venues["kraken"].Enabled {
		t.Fatal("kraken still enabled")
	}
	if len(cfg.Arbitrage.Triangles) != 1 || cfg.Arbitrage.Triangles[0].Venue != "binance" {
		t.Fatalf("triangles = %+v", cfg.Arbitrage.Triangles)
	}
	if cfg.Archive.Interval.Duration != 30*time.Minute {
		t.Fatalf("archive interval = %v", cfg.Archive.Interval.Duration)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config does not validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"run\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ARBCORE_MODE", "server")
	t.Setenv("ARBCORE_VENUE_BINANCE_API_KEY", "env-key")
	t.Setenv("ARBCORE_ARBITRAGE_SYMBOLS", "BTCUSDT, ETHUSDT ,SOLUSDT")
	t.Setenv("ARBCORE_EXECUTION_MAX_CONCURRENT_OPERATIONS", "7")
	t.Setenv("ARBCORE_LEDGER_DSN", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "server" {
		t.Fatalf("mode = %s", cfg.Mode)
	}
	if cfg.Venues["binance"].ApiKey != "env-key" {
		t.Fatal("venue credential override not applied")
	}
	if got := cfg.Arbitrage.Symbols; len(got) != 3 || got[2] != "SOLUSDT" {
		t.Fatalf("symbols = %v", got)
	}
	if cfg.Execution.MaxConcurrentOperations != 7 {
		t.Fatalf("max concurrent = %d", cfg.Execution.MaxConcurrentOperations)
	}
	if cfg.Ledger.DSN != "postgres://env" {
		t.Fatalf("dsn = %s", cfg.Ledger.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}
