// Package config defines the top-level configuration for the wheel bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// MaxRunsPerDayLimit is the number of distinct execution hours the scheduler
// knows how to spread across a session.
const MaxRunsPerDayLimit = 4

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WHEELBOT_* environment variables.
type Config struct {
	Broker      BrokerConfig    `toml:"broker"`
	Strategy    StrategyConfig  `toml:"strategy"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Postgres    PostgresConfig  `toml:"postgres"`
	Redis       RedisConfig     `toml:"redis"`
	S3          S3Config        `toml:"s3"`
	Journal     JournalConfig   `toml:"journal"`
	Server      ServerConfig    `toml:"server"`
	Notify      NotifyConfig    `toml:"notify"`
	SymbolsFile string          `toml:"symbols_file"`
	// Symbols is used when SymbolsFile is empty.
	Symbols []string `toml:"symbols"`
	// ExtraClosures are YYYY-MM-DD full-day exchange closures beyond the
	// rule-based holiday calendar.
	ExtraClosures []string `toml:"extra_closures"`
	Mode          string   `toml:"mode"`
	LogLevel      string   `toml:"log_level"`
}

// BrokerConfig holds Alpaca credentials and endpoints.
type BrokerConfig struct {
	APIKey     string   `toml:"api_key"`
	SecretKey  string   `toml:"secret_key"`
	Paper      bool     `toml:"paper"`
	TradingURL string   `toml:"trading_url"`
	DataURL    string   `toml:"data_url"`
	Timeout    duration `toml:"timeout"`
	RetryCount int      `toml:"retry_count"`
	// RateLimit caps broker calls per RateWindow across processes. Zero
	// disables the limiter.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// StrategyConfig holds scoring filters and pass limits.
type StrategyConfig struct {
	DeltaMin          float64  `toml:"delta_min"`
	DeltaMax          float64  `toml:"delta_max"`
	OpenInterestMin   int64    `toml:"open_interest_min"`
	YieldMin          float64  `toml:"yield_min"`
	YieldMax          float64  `toml:"yield_max"`
	ScoreMin          float64  `toml:"score_min"`
	ExpirationMinDays int      `toml:"expiration_min_days"`
	ExpirationMaxDays int      `toml:"expiration_max_days"`
	MaxRisk           float64  `toml:"max_risk"`
	MaxNewPuts        int      `toml:"max_new_puts"`
	ResubmitAfter     duration `toml:"resubmit_after"`
	FreshStart        bool     `toml:"fresh_start"`
	DryRun            bool     `toml:"dry_run"`
}

// SchedulerConfig holds continuous-mode parameters.
type SchedulerConfig struct {
	Continuous           bool `toml:"continuous"`
	CheckIntervalMinutes int  `toml:"check_interval_minutes"`
	MaxRunsPerDay        int  `toml:"max_runs_per_day"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty DSN and
// Host disables persistence.
type PostgresConfig struct {
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
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty Addr disables the
// pass lock and the broker rate limiter.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters. An empty Bucket
// disables journal upload.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// JournalConfig controls the per-pass strategy journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	AuthToken   string   `toml:"auth_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	Enabled           bool     `toml:"enabled"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with the values used when no file
// overrides them. These match config.example.toml.
func Defaults() Config {
	return Config{
		Broker: BrokerConfig{
			Paper:      true,
			Timeout:    duration{15 * time.Second},
			RetryCount: 2,
			RateLimit:  180,
			RateWindow: duration{time.Minute},
		},
		Strategy: StrategyConfig{
			DeltaMin:          0.15,
			DeltaMax:          0.30,
			OpenInterestMin:   100,
			YieldMin:          0.01,
			YieldMax:          1.00,
			ScoreMin:          0.05,
			ExpirationMinDays: 0,
			ExpirationMaxDays: 21,
			MaxRisk:           80000,
			ResubmitAfter:     duration{30 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			CheckIntervalMinutes: 15,
			MaxRunsPerDay:        4,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   5,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "journal",
		},
		Journal: JournalConfig{
			Dir: "logs",
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"startup", "trade", "insufficient_funds", "error", "completion", "scheduler"},
		},
		SymbolsFile: "config/symbol_list.txt",
		Mode:        "trade",
		LogLevel:    "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Broker
	if c.Broker.APIKey == "" || c.Broker.SecretKey == "" {
		errs = append(errs, "broker: api_key and secret_key must be set (or ALPACA_API_KEY / ALPACA_SECRET_KEY)")
	}
	if c.Broker.Timeout.Duration <= 0 {
		errs = append(errs, "broker: timeout must be > 0")
	}
	if c.Broker.RetryCount < 0 {
		errs = append(errs, "broker: retry_count must be >= 0")
	}
	if c.Broker.RateLimit < 0 {
		errs = append(errs, "broker: rate_limit must be >= 0")
	}
	if c.Broker.RateLimit > 0 && c.Broker.RateWindow.Duration <= 0 {
		errs = append(errs, "broker: rate_window must be > 0 when rate_limit is set")
	}

	// Strategy
	s := c.Strategy
	if s.DeltaMin < 0 || s.DeltaMax > 1 || s.DeltaMin >= s.DeltaMax {
		errs = append(errs, fmt.Sprintf("strategy: need 0 <= delta_min < delta_max <= 1, got %g..%g", s.DeltaMin, s.DeltaMax))
	}
	if s.OpenInterestMin < 0 {
		errs = append(errs, "strategy: open_interest_min must be >= 0")
	}
	if s.YieldMin < 0 || s.YieldMin >= s.YieldMax {
		errs = append(errs, fmt.Sprintf("strategy: need 0 <= yield_min < yield_max, got %g..%g", s.YieldMin, s.YieldMax))
	}
	if s.ScoreMin < 0 {
		errs = append(errs, "strategy: score_min must be >= 0")
	}
	if s.ExpirationMinDays < 0 || s.ExpirationMinDays > s.ExpirationMaxDays {
		errs = append(errs, fmt.Sprintf("strategy: need 0 <= expiration_min_days <= expiration_max_days, got %d..%d", s.ExpirationMinDays, s.ExpirationMaxDays))
	}
	if s.MaxRisk < 0 {
		errs = append(errs, "strategy: max_risk must be >= 0")
	}
	if s.MaxNewPuts < 0 {
		errs = append(errs, "strategy: max_new_puts must be >= 0")
	}
	if s.ResubmitAfter.Duration < 0 {
		errs = append(errs, "strategy: resubmit_after must be >= 0")
	}

	// Scheduler
	if c.Scheduler.CheckIntervalMinutes < 1 {
		errs = append(errs, fmt.Sprintf("scheduler: check_interval_minutes must be >= 1, got %d", c.Scheduler.CheckIntervalMinutes))
	}
	if c.Scheduler.MaxRunsPerDay < 1 || c.Scheduler.MaxRunsPerDay > MaxRunsPerDayLimit {
		errs = append(errs, fmt.Sprintf("scheduler: max_runs_per_day must be 1-%d, got %d", MaxRunsPerDayLimit, c.Scheduler.MaxRunsPerDay))
	}

	// Postgres
	if c.Postgres.Enabled() {
		if strings.TrimSpace(c.Postgres.DSN) == "" && (c.Postgres.Port <= 0 || c.Postgres.Port > 65535) {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Journal
	if c.Journal.Enabled && c.Journal.Dir == "" {
		errs = append(errs, "journal: dir must not be empty when enabled")
	}

	// Server
	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	for _, d := range c.ExtraClosures {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			errs = append(errs, fmt.Sprintf("extra_closures: %q is not YYYY-MM-DD", d))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Closures parses ExtraClosures. Call after Validate.
func (c *Config) Closures() []time.Time {
	out := make([]time.Time, 0, len(c.ExtraClosures))
	for _, d := range c.ExtraClosures {
		if t, err := time.Parse(time.DateOnly, d); err == nil {
			out = append(out, t)
		}
	}
	return out
}
