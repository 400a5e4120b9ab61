package domain

import "time"

// SchedulerPhase is the lifecycle state of the continuous scheduler.
type SchedulerPhase string

const (
	SchedulerStarting   SchedulerPhase = "STARTING"
	SchedulerMonitoring SchedulerPhase = "MONITORING"
	SchedulerExecuting  SchedulerPhase = "EXECUTING"
	SchedulerStopping   SchedulerPhase = "STOPPING"
	SchedulerStopped    SchedulerPhase = "STOPPED"
)

// ScheduleState is the scheduler's daily bookkeeping. TradingDay is a
// calendar date in exchange time; LastExecutionHour is nil until the first
// run of the day.
type ScheduleState struct {
	SessionID            string
	TradingDay           time.Time
	RunsToday            int
	LastExecutionHour    *int
	MaxRunsPerDay        int
	CheckIntervalMinutes int
	UpdatedAt            time.Time
}

// SameDay reports whether t falls on the state's trading day.
func (s ScheduleState) SameDay(t time.Time) bool {
	y1, m1, d1 := s.TradingDay.Date()
	y2, m2, d2 := t.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
