package domain

import (
	"context"
	"time"
)

// EventType names a notification category. Operators filter on these.
type EventType string

const (
	EventStartup           EventType = "startup"
	EventPositionUpdate    EventType = "position_update"
	EventTrade             EventType = "trade"
	EventInsufficientFunds EventType = "insufficient_funds"
	EventError             EventType = "error"
	EventCompletion        EventType = "completion"
	EventScheduler         EventType = "scheduler"
)

// Event is a single operator-facing notification.
type Event struct {
	Type    EventType
	Title   string
	Message string
	Time    time.Time
}

// NotificationSink delivers events on a best-effort basis. Failures are
// logged by the sink and never returned to the strategy.
type NotificationSink interface {
	Notify(ctx context.Context, ev Event)
}
