package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBCORE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file. Venue credentials use the venue name uppercased,
// e.g. ARBCORE_VENUE_BINANCE_API_KEY.
func applyEnvOverrides(cfg *Config) {
	// ── Venues ──
	for name, v := range cfg.Venues {
		prefix := "ARBCORE_VENUE_" + strings.ToUpper(name) + "_"
		setStr(&v.ApiKey, prefix+"API_KEY")
		setStr(&v.ApiSecret, prefix+"API_SECRET")
		setStr(&v.EncryptedKeyPath, prefix+"ENCRYPTED_KEY_PATH")
		setStr(&v.KeyPassword, prefix+"KEY_PASSWORD")
		setBool(&v.Enabled, prefix+"ENABLED")
		setFloat64(&v.TakerFeePct, prefix+"TAKER_FEE_PCT")
		setInt(&v.PollIntervalMs, prefix+"POLL_INTERVAL_MS")
		setBool(&v.Stream, prefix+"STREAM")
		cfg.Venues[name] = v
	}

	// ── Arbitrage ──
	setStringSlice(&cfg.Arbitrage.Symbols, "ARBCORE_ARBITRAGE_SYMBOLS")
	setStringSlice(&cfg.Arbitrage.SymbolAllowList, "ARBCORE_ARBITRAGE_SYMBOL_ALLOW_LIST")
	setFloat64(&cfg.Arbitrage.MinSpreadPct, "ARBCORE_ARBITRAGE_MIN_SPREAD_PCT")
	setFloat64(&cfg.Arbitrage.MinProfitUSD, "ARBCORE_ARBITRAGE_MIN_PROFIT_USD")
	setFloat64(&cfg.Arbitrage.MaxInvestmentUSD, "ARBCORE_ARBITRAGE_MAX_INVESTMENT_USD")
	setFloat64(&cfg.Arbitrage.SlippageBufferPct, "ARBCORE_ARBITRAGE_SLIPPAGE_BUFFER_PCT")
	setInt(&cfg.Arbitrage.MaxQuoteAgeMs, "ARBCORE_ARBITRAGE_MAX_QUOTE_AGE_MS")
	setInt(&cfg.Arbitrage.CooldownWindowSec, "ARBCORE_ARBITRAGE_COOLDOWN_WINDOW_SEC")
	setFloat64(&cfg.Arbitrage.TriangleStartUSD, "ARBCORE_ARBITRAGE_TRIANGLE_START_USD")

	// ── Execution ──
	setBool(&cfg.Execution.Enabled, "ARBCORE_EXECUTION_ENABLED")
	setInt(&cfg.Execution.LegTimeoutMs, "ARBCORE_EXECUTION_LEG_TIMEOUT_MS")
	setInt(&cfg.Execution.MaxAttemptDurationMs, "ARBCORE_EXECUTION_MAX_ATTEMPT_DURATION_MS")
	setInt64(&cfg.Execution.MaxConcurrentOperations, "ARBCORE_EXECUTION_MAX_CONCURRENT_OPERATIONS")
	setInt(&cfg.Execution.TickIntervalMs, "ARBCORE_EXECUTION_TICK_INTERVAL_MS")

	// ── Ledger ──
	setStr(&cfg.Ledger.DSN, "ARBCORE_LEDGER_DSN")
	setStr(&cfg.Ledger.Host, "ARBCORE_LEDGER_HOST")
	setInt(&cfg.Ledger.Port, "ARBCORE_LEDGER_PORT")
	setStr(&cfg.Ledger.Database, "ARBCORE_LEDGER_DATABASE")
	setStr(&cfg.Ledger.User, "ARBCORE_LEDGER_USER")
	setStr(&cfg.Ledger.Password, "ARBCORE_LEDGER_PASSWORD")
	setStr(&cfg.Ledger.SSLMode, "ARBCORE_LEDGER_SSLMODE")
	setInt(&cfg.Ledger.PoolMaxConns, "ARBCORE_LEDGER_POOL_MAX_CONNS")
	setInt(&cfg.Ledger.PoolMinConns, "ARBCORE_LEDGER_POOL_MIN_CONNS")
	setBool(&cfg.Ledger.RunMigrations, "ARBCORE_LEDGER_RUN_MIGRATIONS")
	setInt(&cfg.Ledger.WriteRetries, "ARBCORE_LEDGER_WRITE_RETRIES")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBCORE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBCORE_REDIS_TLS_ENABLED")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "ARBCORE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "ARBCORE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "ARBCORE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "ARBCORE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "ARBCORE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "ARBCORE_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "ARBCORE_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "ARBCORE_ARCHIVE_FORCE_PATH_STYLE")
	setDuration(&cfg.Archive.Interval, "ARBCORE_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBCORE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBCORE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBCORE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBCORE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBCORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBCORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBCORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBCORE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBCORE_MODE")
	setStr(&cfg.LogLevel, "ARBCORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
