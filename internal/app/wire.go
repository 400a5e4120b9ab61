package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	s3blob "github.com/alanyoungcy/wheelbot/internal/blob/s3"
	"github.com/alanyoungcy/wheelbot/internal/cache/redis"
	"github.com/alanyoungcy/wheelbot/internal/config"
	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/executor"
	"github.com/alanyoungcy/wheelbot/internal/journal"
	"github.com/alanyoungcy/wheelbot/internal/markethours"
	"github.com/alanyoungcy/wheelbot/internal/notify"
	"github.com/alanyoungcy/wheelbot/internal/platform/alpaca"
	"github.com/alanyoungcy/wheelbot/internal/service"
	"github.com/alanyoungcy/wheelbot/internal/store/postgres"
	"github.com/alanyoungcy/wheelbot/internal/strategy"
)

// Dependencies bundles everything the run modes need. Optional collaborators
// are nil interfaces when their backing service is not configured.
type Dependencies struct {
	SessionID string
	Symbols   []string
	Clock     *markethours.Clock

	Broker   *service.BrokerService
	Executor *executor.Executor
	Notifier *notify.Notifier

	// Optional
	ScheduleStore domain.ScheduleStore
	AuditStore    domain.AuditStore
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	Journal       *journal.Writer
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them together with a cleanup function that releases resources in
// reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{SessionID: uuid.NewString()}

	symbols, err := cfg.Watchlist()
	if err != nil {
		return fail(fmt.Errorf("wire: watchlist: %w", err))
	}
	deps.Symbols = symbols

	clock, err := markethours.NewClock(cfg.Closures())
	if err != nil {
		return fail(fmt.Errorf("wire: market clock: %w", err))
	}
	deps.Clock = clock

	// --- PostgreSQL (optional) ---
	if cfg.Postgres.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.ScheduleStore = postgres.NewScheduleStore(pool, "default")
		deps.AuditStore = postgres.NewAuditStore(pool, deps.SessionID)
	}

	// --- Redis (optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		if cfg.Broker.RateLimit > 0 {
			deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Broker.RateLimit, cfg.Broker.RateWindow.Duration)
		}
	}

	// --- S3 journal upload (optional) ---
	var blob domain.BlobWriter
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		blob = s3blob.NewWriter(s3Client)
	}
	if cfg.Journal.Enabled {
		deps.Journal = journal.NewWriter(cfg.Journal.Dir, strings.Trim(cfg.S3.Prefix, "/"), blob, logger)
	}

	// --- Notifications ---
	deps.Notifier = newNotifier(cfg, logger)

	// --- Broker ---
	client, err := alpaca.NewClient(alpaca.Config{
		APIKey:     cfg.Broker.APIKey,
		SecretKey:  cfg.Broker.SecretKey,
		Paper:      cfg.Broker.Paper,
		TradingURL: cfg.Broker.TradingURL,
		DataURL:    cfg.Broker.DataURL,
		Timeout:    cfg.Broker.Timeout.Duration,
		RetryCount: cfg.Broker.RetryCount,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: alpaca: %w", err))
	}
	// Rejected credentials stop startup; other account errors are retried by
	// the next pass.
	acct, err := client.Account(ctx)
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return fail(fmt.Errorf("wire: alpaca credentials rejected: %w", err))
	case err != nil:
		logger.Warn("broker account check failed", slog.String("error", err.Error()))
	default:
		logger.Info("broker account verified",
			slog.String("status", acct.Status),
			slog.Bool("paper", cfg.Broker.Paper),
		)
	}
	deps.Broker = service.NewBrokerService(client, deps.RateLimiter, cfg.Strategy.DryRun, logger)

	// --- Executor ---
	scorer := strategy.NewScorer(strategy.Params{
		DeltaMin:        cfg.Strategy.DeltaMin,
		DeltaMax:        cfg.Strategy.DeltaMax,
		OpenInterestMin: cfg.Strategy.OpenInterestMin,
		YieldMin:        cfg.Strategy.YieldMin,
		YieldMax:        cfg.Strategy.YieldMax,
		ScoreMin:        cfg.Strategy.ScoreMin,
	})
	exec := executor.NewExecutor(executor.Config{
		Symbols:           deps.Symbols,
		MaxRisk:           decimal.NewFromFloat(cfg.Strategy.MaxRisk),
		MaxNewPuts:        cfg.Strategy.MaxNewPuts,
		ExpirationMinDays: cfg.Strategy.ExpirationMinDays,
		ExpirationMaxDays: cfg.Strategy.ExpirationMaxDays,
		FreshStart:        cfg.Strategy.FreshStart,
		DryRun:            cfg.Strategy.DryRun,
		ResubmitAfter:     cfg.Strategy.ResubmitAfter.Duration,
	}, deps.Broker, scorer, clock.Location(), logger)
	exec.SetNotifier(deps.Notifier)
	if deps.Journal != nil {
		exec.SetJournal(deps.Journal)
	}
	if deps.AuditStore != nil {
		exec.SetAudit(deps.AuditStore)
	}
	if deps.LockManager != nil {
		exec.SetLocker(deps.LockManager)
	}
	deps.Executor = exec

	return deps, cleanup, nil
}

// newNotifier builds the sender fan-out. Notifications that are enabled with
// no destination are disabled with a warning rather than failing startup.
func newNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.Enabled {
		if cfg.Notify.DiscordWebhookURL != "" {
			senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
		}
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
			senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
		}
		if len(senders) == 0 {
			logger.Warn("notifications enabled but no destination configured; disabling")
		}
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger)
}

// NewNotifier exposes the notifier construction for the test-notify command.
func NewNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	return newNotifier(cfg, logger)
}

// passTimeout bounds a one-shot pass so a hung broker cannot wedge the process.
const passTimeout = 10 * time.Minute
