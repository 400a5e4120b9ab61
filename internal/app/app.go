// Package app wires the wheel bot's dependencies and runs it in one-shot,
// continuous or status-server mode.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/wheelbot/internal/config"
	"github.com/alanyoungcy/wheelbot/internal/scheduler"
	"github.com/alanyoungcy/wheelbot/internal/server"
	"github.com/alanyoungcy/wheelbot/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
	started time.Time
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "app")),
		started: time.Now(),
	}
}

// Run wires dependencies, selects the operating mode and blocks until the
// mode finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.Bool("continuous", a.cfg.Scheduler.Continuous),
		slog.Bool("dry_run", a.cfg.Strategy.DryRun),
		slog.Bool("paper", a.cfg.Broker.Paper),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logger.InfoContext(ctx, "dependencies ready",
		slog.String("session_id", deps.SessionID),
		slog.Int("symbols", len(deps.Symbols)),
		slog.Bool("postgres", deps.ScheduleStore != nil),
		slog.Bool("redis", deps.LockManager != nil),
		slog.Bool("journal", deps.Journal != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)

	switch strings.ToLower(a.cfg.Mode) {
	case "trade":
		if a.cfg.Scheduler.Continuous {
			return a.ContinuousMode(ctx, deps)
		}
		return a.OnceMode(ctx, deps)
	case "server":
		return a.ServerMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// OnceMode runs a single strategy pass immediately, regardless of market
// hours, and returns its error.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	ctx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	summary, err := deps.Executor.RunPass(ctx)
	if err != nil {
		return err
	}
	for _, s := range summary.Skipped {
		a.logger.InfoContext(ctx, "skipped", slog.String("symbol", s.Symbol), slog.String("reason", s.Reason))
	}
	return nil
}

// ContinuousMode runs the scheduler loop and, when enabled, the status server.
// The group stops when ctx is cancelled; an in-flight pass completes first.
func (a *App) ContinuousMode(ctx context.Context, deps *Dependencies) error {
	sched := scheduler.New(scheduler.Config{
		CheckInterval: time.Duration(a.cfg.Scheduler.CheckIntervalMinutes) * time.Minute,
		MaxRunsPerDay: a.cfg.Scheduler.MaxRunsPerDay,
		SessionID:     deps.SessionID,
	}, deps.Clock, deps.Executor, deps.ScheduleStore, deps.Notifier, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, sched)
	}
	return g.Wait()
}

// ServerMode serves the status API without trading.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// startHTTPServer adds the status server and its shutdown watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, sched *scheduler.Scheduler) {
	var view handler.SchedulerView
	if sched != nil {
		view = sched
	}
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.started),
		Status:    handler.NewStatusHandler(a.cfg.Mode, deps.Clock, view),
		Positions: handler.NewPositionHandler(deps.Broker, a.logger),
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.AuthToken,
		RateLimit:   60,
		RateWindow:  time.Minute,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
