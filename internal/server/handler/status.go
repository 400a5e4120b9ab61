package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/scheduler"
)

// SchedulerView exposes the scheduler's current state.
type SchedulerView interface {
	Snapshot() scheduler.Snapshot
}

// StatusHandler reports the market clock and, in continuous mode, the
// scheduler state.
type StatusHandler struct {
	mode      string
	clock     domain.MarketClock
	scheduler SchedulerView // nil in one-shot mode
	now       func() time.Time
}

// NewStatusHandler creates a StatusHandler. sched may be nil.
func NewStatusHandler(mode string, clock domain.MarketClock, sched SchedulerView) *StatusHandler {
	return &StatusHandler{mode: mode, clock: clock, scheduler: sched, now: time.Now}
}

type marketResponse struct {
	Now             string `json:"now"`
	Phase           string `json:"phase"`
	IsTradingDay    bool   `json:"is_trading_day"`
	IsMarketOpen    bool   `json:"is_market_open"`
	CanTradeOptions bool   `json:"can_trade_options"`
	NextOpen        string `json:"next_open,omitempty"`
	UntilOpen       string `json:"until_open,omitempty"`
}

type schedulerResponse struct {
	Phase                string  `json:"phase"`
	SessionID            string  `json:"session_id"`
	TradingDay           string  `json:"trading_day,omitempty"`
	RunsToday            int     `json:"runs_today"`
	MaxRunsPerDay        int     `json:"max_runs_per_day"`
	TargetHours          []int   `json:"target_hours"`
	LastExecutionHour    *int    `json:"last_execution_hour"`
	CheckIntervalMinutes int     `json:"check_interval_minutes"`
	LastReason           string  `json:"last_reason,omitempty"`
	LastRunAt            *string `json:"last_run_at,omitempty"`
	LastError            string  `json:"last_error,omitempty"`
}

type statusResponse struct {
	Mode      string             `json:"mode"`
	Market    marketResponse     `json:"market"`
	Scheduler *schedulerResponse `json:"scheduler,omitempty"`
}

func toMarketResponse(st domain.MarketStatus) marketResponse {
	out := marketResponse{
		Now:             st.Now.Format(time.RFC3339),
		Phase:           string(st.Phase),
		IsTradingDay:    st.IsTradingDay,
		IsMarketOpen:    st.IsMarketOpen,
		CanTradeOptions: st.CanTradeOptions,
	}
	if !st.NextOpen.IsZero() {
		out.NextOpen = st.NextOpen.Format(time.RFC3339)
	}
	if st.UntilOpen > 0 {
		out.UntilOpen = st.UntilOpen.Round(time.Second).String()
	}
	return out
}

func toSchedulerResponse(s scheduler.Snapshot) *schedulerResponse {
	out := &schedulerResponse{
		Phase:                string(s.Phase),
		SessionID:            s.State.SessionID,
		RunsToday:            s.State.RunsToday,
		MaxRunsPerDay:        s.State.MaxRunsPerDay,
		TargetHours:          scheduler.TargetHours(s.State.MaxRunsPerDay),
		LastExecutionHour:    s.State.LastExecutionHour,
		CheckIntervalMinutes: s.State.CheckIntervalMinutes,
		LastReason:           s.LastReason,
		LastError:            s.LastError,
	}
	if !s.State.TradingDay.IsZero() {
		out.TradingDay = s.State.TradingDay.Format(time.DateOnly)
	}
	if s.LastRunAt != nil {
		at := s.LastRunAt.Format(time.RFC3339)
		out.LastRunAt = &at
	}
	return out
}

// GetStatus responds with market and scheduler status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Mode:   h.mode,
		Market: toMarketResponse(h.clock.Status(h.now())),
	}
	if h.scheduler != nil {
		resp.Scheduler = toSchedulerResponse(h.scheduler.Snapshot())
	}
	writeJSON(w, http.StatusOK, resp)
}
