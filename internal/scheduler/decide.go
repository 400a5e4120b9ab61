// Package scheduler decides when the strategy pass may run and drives it in a
// long-lived loop. All policy lives in Decide, a pure function over the
// scheduler's bookkeeping and the market status; the loop only sleeps, calls
// Decide, runs the pass and records the result.
package scheduler

import (
	"fmt"
	"slices"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// Action is what the loop does after a tick.
type Action string

const (
	ActionSleep   Action = "SLEEP"
	ActionExecute Action = "EXECUTE"
	ActionStop    Action = "STOP"
)

// MaxRunsPerDayLimit is the largest run count with a defined hour schedule.
const MaxRunsPerDayLimit = 4

var targetHours = map[int][]int{
	1: {10},
	2: {10, 14},
	3: {10, 12, 15},
	4: {10, 12, 14, 15},
}

// TargetHours returns the exchange-time hours at which passes run for the
// given daily cap. Out of range caps are clamped to 1..4.
func TargetHours(maxRuns int) []int {
	maxRuns = max(1, min(maxRuns, MaxRunsPerDayLimit))
	return targetHours[maxRuns]
}

// tradingDay truncates t to its calendar date in t's location.
func tradingDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Rollover resets the daily counters when now falls on a different calendar
// day than the state. It reports whether a reset happened.
func Rollover(state domain.ScheduleState, now time.Time) (domain.ScheduleState, bool) {
	if !state.TradingDay.IsZero() && state.SameDay(now) {
		return state, false
	}
	state.TradingDay = tradingDay(now)
	state.RunsToday = 0
	state.LastExecutionHour = nil
	return state, true
}

// Decide applies one tick of scheduling policy. now must be in exchange time.
// The returned state carries any day rollover; run counters are only advanced
// by Complete once the pass returns.
func Decide(state domain.ScheduleState, status domain.MarketStatus, now time.Time) (domain.ScheduleState, Action, string) {
	state, _ = Rollover(state, now)

	if !status.IsTradingDay {
		return state, ActionSleep, "not a trading day"
	}
	if !status.CanTradeOptions {
		return state, ActionSleep, "options trading not allowed (market closed)"
	}
	if state.RunsToday >= state.MaxRunsPerDay {
		return state, ActionSleep, fmt.Sprintf("daily limit reached (%d/%d)", state.RunsToday, state.MaxRunsPerDay)
	}

	hour := now.Hour()
	if !slices.Contains(TargetHours(state.MaxRunsPerDay), hour) {
		return state, ActionSleep, fmt.Sprintf("hour %d is not a scheduled execution hour", hour)
	}
	if state.LastExecutionHour != nil && *state.LastExecutionHour == hour {
		return state, ActionSleep, fmt.Sprintf("already executed during hour %d", hour)
	}
	return state, ActionExecute, fmt.Sprintf("scheduled run %d/%d at hour %d", state.RunsToday+1, state.MaxRunsPerDay, hour)
}

// Complete records a finished pass that started during hour.
func Complete(state domain.ScheduleState, hour int, at time.Time) domain.ScheduleState {
	state.RunsToday++
	h := hour
	state.LastExecutionHour = &h
	state.UpdatedAt = at
	return state
}
