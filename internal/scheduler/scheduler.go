package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/metrics"
)

// Runner executes one strategy pass.
type Runner interface {
	RunPass(ctx context.Context) (domain.PassSummary, error)
}

// Config parameterizes the loop.
type Config struct {
	CheckInterval time.Duration
	MaxRunsPerDay int
	SessionID     string // generated when empty
}

// Snapshot is a read-only view of the scheduler for status reporting.
type Snapshot struct {
	Phase      domain.SchedulerPhase `json:"phase"`
	State      domain.ScheduleState  `json:"state"`
	Market     domain.MarketStatus   `json:"market"`
	LastReason string                `json:"last_reason"`
	LastRunAt  *time.Time            `json:"last_run_at,omitempty"`
	LastError  string                `json:"last_error,omitempty"`
}

var allPhases = []string{
	string(domain.SchedulerStarting),
	string(domain.SchedulerMonitoring),
	string(domain.SchedulerExecuting),
	string(domain.SchedulerStopping),
	string(domain.SchedulerStopped),
}

// Scheduler runs the strategy at the scheduled hours of each trading day.
type Scheduler struct {
	cfg      Config
	clock    domain.MarketClock
	runner   Runner
	store    domain.ScheduleStore
	notifier domain.NotificationSink
	logger   *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu         sync.RWMutex
	phase      domain.SchedulerPhase
	state      domain.ScheduleState
	market     domain.MarketStatus
	lastReason string
	lastRunAt  *time.Time
	lastError  string
	loggedHour int
}

// New creates a Scheduler. store and notifier may be nil.
func New(cfg Config, clock domain.MarketClock, runner Runner, store domain.ScheduleStore, notifier domain.NotificationSink, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		clock:      clock,
		runner:     runner,
		store:      store,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "scheduler")),
		now:        time.Now,
		after:      time.After,
		phase:      domain.SchedulerStarting,
		loggedHour: -1,
	}
}

// Snapshot returns the current scheduler view.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Phase:      s.phase,
		State:      s.state,
		Market:     s.market,
		LastReason: s.lastReason,
		LastRunAt:  s.lastRunAt,
		LastError:  s.lastError,
	}
}

func (s *Scheduler) setPhase(p domain.SchedulerPhase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	metrics.SetPhase(string(p), allPhases...)
}

// Run loops until ctx is cancelled. A pass already in flight when ctx is
// cancelled runs to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.setPhase(domain.SchedulerStarting)
	if err := s.start(ctx); err != nil {
		s.setPhase(domain.SchedulerStopped)
		return err
	}
	s.logger.Info("continuous scheduler started",
		slog.String("session_id", s.state.SessionID),
		slog.Duration("check_interval", s.cfg.CheckInterval),
		slog.Int("max_runs_per_day", s.cfg.MaxRunsPerDay),
		slog.Int("runs_today", s.state.RunsToday),
	)
	s.notify(ctx, "Scheduler started", fmt.Sprintf(
		"Options wheel bot started in continuous mode\nCheck interval: %s\nMax runs per day: %d",
		s.cfg.CheckInterval, s.cfg.MaxRunsPerDay))
	s.setPhase(domain.SchedulerMonitoring)

	for s.tick(ctx) != ActionStop {
		select {
		case <-ctx.Done():
		case <-s.after(s.cfg.CheckInterval):
		}
	}

	s.setPhase(domain.SchedulerStopping)
	snap := s.Snapshot()
	s.logger.Info("stopping continuous scheduler", slog.Int("runs_today", snap.State.RunsToday))
	s.notify(context.WithoutCancel(ctx), "Scheduler stopped", fmt.Sprintf(
		"Options wheel bot stopped\nRuns completed today: %d", snap.State.RunsToday))
	s.setPhase(domain.SchedulerStopped)
	return nil
}

// start builds the initial state, resuming today's counters from the store.
func (s *Scheduler) start(ctx context.Context) error {
	now := s.clock.Status(s.now()).Now
	sessionID := s.cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	state := domain.ScheduleState{
		SessionID:            sessionID,
		MaxRunsPerDay:        s.cfg.MaxRunsPerDay,
		CheckIntervalMinutes: int(s.cfg.CheckInterval / time.Minute),
	}
	state, _ = Rollover(state, now)

	if s.store != nil {
		saved, err := s.store.Load(ctx)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return fmt.Errorf("scheduler: load state: %w", err)
		case saved.SameDay(now):
			state.RunsToday = saved.RunsToday
			state.LastExecutionHour = saved.LastExecutionHour
			s.logger.Info("resumed schedule state",
				slog.String("previous_session", saved.SessionID),
				slog.Int("runs_today", saved.RunsToday),
			)
		}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.RunsToday.Set(float64(state.RunsToday))
	s.save(ctx, state)
	return nil
}

// tick runs one iteration of the loop.
func (s *Scheduler) tick(ctx context.Context) Action {
	if ctx.Err() != nil {
		return ActionStop
	}

	status := s.clock.Status(s.now())
	s.mu.RLock()
	prev := s.state
	s.mu.RUnlock()

	next, action, reason := Decide(prev, status, status.Now)
	if !prev.SameDay(next.TradingDay) {
		s.logger.Info("new trading day, reset run counter", slog.String("trading_day", next.TradingDay.Format(time.DateOnly)))
		metrics.RunsToday.Set(0)
		s.save(ctx, next)
	}

	s.mu.Lock()
	s.state = next
	s.market = status
	s.lastReason = reason
	s.mu.Unlock()

	s.logStatus(status, next, action, reason)
	if action != ActionExecute {
		return action
	}

	hour := status.Now.Hour()
	s.setPhase(domain.SchedulerExecuting)
	s.notify(ctx, "Execution started", fmt.Sprintf("Starting strategy execution (run %d/%d)", next.RunsToday+1, next.MaxRunsPerDay))

	// the pass is never interrupted mid-order
	summary, err := s.runner.RunPass(context.WithoutCancel(ctx))

	finished := s.now()
	next = Complete(next, hour, finished)
	s.mu.Lock()
	s.state = next
	s.lastRunAt = &finished
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()
	metrics.RunsToday.Set(float64(next.RunsToday))
	s.save(context.WithoutCancel(ctx), next)

	if err != nil {
		s.logger.Error("strategy execution failed", slog.String("error", err.Error()), slog.Int("runs_today", next.RunsToday))
	} else {
		s.logger.Info("strategy execution completed",
			slog.Int("runs_today", next.RunsToday),
			slog.Int("puts_sold", len(summary.PutsSold)),
			slog.Int("calls_sold", len(summary.CallsSold)),
		)
		s.notify(ctx, "Execution complete", fmt.Sprintf("Strategy execution completed (run %d/%d)", next.RunsToday, next.MaxRunsPerDay))
	}
	s.setPhase(domain.SchedulerMonitoring)
	return ActionExecute
}

// logStatus logs every tick at debug and a full snapshot once per hour.
func (s *Scheduler) logStatus(status domain.MarketStatus, state domain.ScheduleState, action Action, reason string) {
	s.logger.Debug("execution check", slog.String("action", string(action)), slog.String("reason", reason))

	if status.Now.Hour() == s.loggedHour {
		return
	}
	s.loggedHour = status.Now.Hour()
	attrs := []any{
		slog.String("time_et", status.Now.Format(time.DateTime)),
		slog.String("phase", string(status.Phase)),
		slog.Bool("can_trade_options", status.CanTradeOptions),
		slog.Int("runs_today", state.RunsToday),
		slog.Int("max_runs_per_day", state.MaxRunsPerDay),
	}
	if !status.CanTradeOptions {
		attrs = append(attrs,
			slog.String("next_open", status.NextOpen.Format(time.DateTime)),
			slog.Duration("until_open", status.UntilOpen),
		)
	}
	s.logger.Info("scheduler status", attrs...)
}

func (s *Scheduler) save(ctx context.Context, state domain.ScheduleState) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, state); err != nil {
		s.logger.Warn("failed to persist schedule state", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) notify(ctx context.Context, title, msg string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.Event{Type: domain.EventScheduler, Title: title, Message: msg, Time: s.now()})
}
