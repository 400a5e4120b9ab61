package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"trade", " error "}, quietLogger())

	n.Notify(context.Background(), domain.Event{Type: domain.EventTrade, Title: "sold"})
	n.Notify(context.Background(), domain.Event{Type: domain.EventPositionUpdate, Title: "positions"})
	n.Notify(context.Background(), domain.Event{Type: domain.EventError, Title: "boom"})

	if len(s.titles) != 2 || s.titles[0] != "sold" || s.titles[1] != "boom" {
		t.Fatalf("delivered %v, want [sold boom]", s.titles)
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	n.Notify(context.Background(), domain.Event{Type: domain.EventScheduler, Title: "tick"})
	if len(s.titles) != 1 {
		t.Fatalf("delivered %d, want 1", len(s.titles))
	}
}

func TestNotifierSenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	n.Notify(context.Background(), domain.Event{Type: domain.EventError, Title: "x"})
	if len(good.titles) != 1 {
		t.Fatal("second sender skipped after first failed")
	}

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad: down") {
		t.Fatalf("NotifyAll error = %v", err)
	}
}

func TestNotifyAllWithoutSenders(t *testing.T) {
	n := NewNotifier(nil, nil, quietLogger())
	if n.Enabled() {
		t.Fatal("Enabled with no senders")
	}
	if err := n.NotifyAll(context.Background(), "t", "m"); err == nil {
		t.Fatal("expected error with no senders")
	}
}

func TestDiscordSenderPostsEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL + "/hook")
	d.now = func() time.Time { return time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC) }
	if err := d.Send(context.Background(), "Sold Put", "AAPL 190P"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "Sold Put" || e.Description != "AAPL 190P" || e.Footer.Text != discordFooter {
		t.Errorf("embed = %+v", e)
	}
	if e.Timestamp != "2025-06-02T14:00:00Z" {
		t.Errorf("timestamp = %s", e.Timestamp)
	}
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404", err)
	}
}

func TestTelegramSender(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "123:abc", "42")
	if err := s.Send(context.Background(), "Started", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if body["chat_id"] != "42" || body["text"] != "*Started*\nhello" {
		t.Errorf("body = %v", body)
	}
}
