// Package notify fans operator events out to chat webhooks. Delivery is best
// effort: a failed sender is logged and never interrupts trading.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches events to every registered Sender, dropping event
// types that are not in the allowed set. An empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

var _ domain.NotificationSink = (*Notifier)(nil)

// NewNotifier creates a Notifier for the given senders and event filter.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Allows reports whether events of type t pass the filter.
func (n *Notifier) Allows(t domain.EventType) bool {
	return len(n.events) == 0 || n.events[t]
}

// Notify delivers ev to all senders when its type is allowed. Sender errors
// are logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, ev domain.Event) {
	if !n.Allows(ev.Type) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(ev.Type)))
		return
	}
	if err := n.dispatch(ctx, ev.Title, ev.Message); err != nil {
		n.logger.WarnContext(ctx, "notification not delivered",
			slog.String("event", string(ev.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// NotifyAll sends to all senders regardless of the filter and returns the
// combined sender error. Used by the test-notify command.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		return errors.New("notify: no senders configured")
	}
	return n.dispatch(ctx, title, message)
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	return errors.Join(errs...)
}
