package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then .env, then
// environment overrides. An empty path skips the file. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads WHEELBOT_* variables, plus the bare names the
// original deployment scripts export, and overwrites the matching fields.
func applyEnvOverrides(cfg *Config) {
	// ── Broker ──
	setStr(&cfg.Broker.APIKey, "ALPACA_API_KEY")
	setStr(&cfg.Broker.SecretKey, "ALPACA_SECRET_KEY")
	setBool(&cfg.Broker.Paper, "IS_PAPER")
	setStr(&cfg.Broker.APIKey, "WHEELBOT_BROKER_API_KEY")
	setStr(&cfg.Broker.SecretKey, "WHEELBOT_BROKER_SECRET_KEY")
	setBool(&cfg.Broker.Paper, "WHEELBOT_BROKER_PAPER")
	setStr(&cfg.Broker.TradingURL, "WHEELBOT_BROKER_TRADING_URL")
	setStr(&cfg.Broker.DataURL, "WHEELBOT_BROKER_DATA_URL")
	setDuration(&cfg.Broker.Timeout, "WHEELBOT_BROKER_TIMEOUT")
	setInt(&cfg.Broker.RetryCount, "WHEELBOT_BROKER_RETRY_COUNT")
	setInt(&cfg.Broker.RateLimit, "WHEELBOT_BROKER_RATE_LIMIT")
	setDuration(&cfg.Broker.RateWindow, "WHEELBOT_BROKER_RATE_WINDOW")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.DeltaMin, "WHEELBOT_STRATEGY_DELTA_MIN")
	setFloat64(&cfg.Strategy.DeltaMax, "WHEELBOT_STRATEGY_DELTA_MAX")
	setInt64(&cfg.Strategy.OpenInterestMin, "WHEELBOT_STRATEGY_OPEN_INTEREST_MIN")
	setFloat64(&cfg.Strategy.YieldMin, "WHEELBOT_STRATEGY_YIELD_MIN")
	setFloat64(&cfg.Strategy.YieldMax, "WHEELBOT_STRATEGY_YIELD_MAX")
	setFloat64(&cfg.Strategy.ScoreMin, "WHEELBOT_STRATEGY_SCORE_MIN")
	setInt(&cfg.Strategy.ExpirationMinDays, "WHEELBOT_STRATEGY_EXPIRATION_MIN_DAYS")
	setInt(&cfg.Strategy.ExpirationMaxDays, "WHEELBOT_STRATEGY_EXPIRATION_MAX_DAYS")
	setFloat64(&cfg.Strategy.MaxRisk, "WHEELBOT_STRATEGY_MAX_RISK")
	setInt(&cfg.Strategy.MaxNewPuts, "WHEELBOT_STRATEGY_MAX_NEW_PUTS")
	setDuration(&cfg.Strategy.ResubmitAfter, "WHEELBOT_STRATEGY_RESUBMIT_AFTER")
	setBool(&cfg.Strategy.DryRun, "WHEELBOT_STRATEGY_DRY_RUN")

	// ── Scheduler ──
	setBool(&cfg.Scheduler.Continuous, "WHEELBOT_SCHEDULER_CONTINUOUS")
	setInt(&cfg.Scheduler.CheckIntervalMinutes, "WHEELBOT_SCHEDULER_CHECK_INTERVAL_MINUTES")
	setInt(&cfg.Scheduler.MaxRunsPerDay, "WHEELBOT_SCHEDULER_MAX_RUNS_PER_DAY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WHEELBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "WHEELBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WHEELBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WHEELBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WHEELBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WHEELBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WHEELBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WHEELBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WHEELBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WHEELBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "WHEELBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WHEELBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WHEELBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WHEELBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WHEELBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WHEELBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WHEELBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WHEELBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "WHEELBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WHEELBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WHEELBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WHEELBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WHEELBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "WHEELBOT_S3_PREFIX")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "WHEELBOT_JOURNAL_ENABLED")
	setStr(&cfg.Journal.Dir, "WHEELBOT_JOURNAL_DIR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WHEELBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WHEELBOT_SERVER_PORT")
	setStr(&cfg.Server.AuthToken, "WHEELBOT_SERVER_AUTH_TOKEN")
	setStringSlice(&cfg.Server.CORSOrigins, "WHEELBOT_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	setBool(&cfg.Notify.Enabled, "DISCORD_NOTIFICATIONS_ENABLED")
	setBool(&cfg.Notify.Enabled, "WHEELBOT_NOTIFY_ENABLED")
	setStr(&cfg.Notify.TelegramToken, "WHEELBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WHEELBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WHEELBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WHEELBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.SymbolsFile, "WHEELBOT_SYMBOLS_FILE")
	setStringSlice(&cfg.Symbols, "WHEELBOT_SYMBOLS")
	setStringSlice(&cfg.ExtraClosures, "WHEELBOT_EXTRA_CLOSURES")
	setStr(&cfg.Mode, "WHEELBOT_MODE")
	setStr(&cfg.LogLevel, "WHEELBOT_LOG_LEVEL")
}

// LoadSymbols reads a watchlist file: one ticker per line, blank lines and
// '#' comments ignored, duplicates dropped, upper-cased.
func LoadSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open symbols %s: %w", path, err)
	}
	defer f.Close()

	var out []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		sym := strings.ToUpper(strings.TrimSpace(line))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: read symbols %s: %w", path, err)
	}
	return out, nil
}

// Watchlist returns the configured symbols, preferring SymbolsFile.
func (c *Config) Watchlist() ([]string, error) {
	if c.SymbolsFile != "" {
		if _, err := os.Stat(c.SymbolsFile); err == nil || len(c.Symbols) == 0 {
			return LoadSymbols(c.SymbolsFile)
		}
	}
	out := make([]string, 0, len(c.Symbols))
	for _, s := range c.Symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
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
