package server

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
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
	"github.com/alanyoungcy/wheelbot/internal/scheduler"
	"github.com/alanyoungcy/wheelbot/internal/server/handler"
)

type fixedClock struct{ status domain.MarketStatus }

func (f fixedClock) Status(time.Time) domain.MarketStatus { return f.status }

type fixedScheduler struct{ snap scheduler.Snapshot }

func (f fixedScheduler) Snapshot() scheduler.Snapshot { return f.snap }

type fakePositions struct {
	positions []domain.Position
	err       error
}

func (f fakePositions) Positions(context.Context) ([]domain.Position, error) {
	return f.positions, f.err
}

type fakeAudit struct {
	opts domain.ListOpts
}

func (f *fakeAudit) Log(context.Context, string, map[string]any) error { return nil }

func (f *fakeAudit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	f.opts = opts
	return []domain.AuditEntry{{ID: 7, Event: "pass_complete", Detail: map[string]any{"puts": 1.0}, CreatedAt: time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)}}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }
func (denyLimiter) Wait(context.Context, string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config, pos fakePositions, audit *fakeAudit, limiter domain.RateLimiter) http.Handler {
	t.Helper()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	hour := 10
	clock := fixedClock{status: domain.MarketStatus{
		Now:             time.Date(2025, 6, 2, 10, 5, 0, 0, ny),
		IsTradingDay:    true,
		IsMarketOpen:    true,
		CanTradeOptions: true,
		Phase:           domain.MarketPhaseRegular,
	}}
	sched := fixedScheduler{snap: scheduler.Snapshot{
		Phase: domain.SchedulerMonitoring,
		State: domain.ScheduleState{
			SessionID:            "s-1",
			TradingDay:           time.Date(2025, 6, 2, 0, 0, 0, 0, ny),
			RunsToday:            1,
			LastExecutionHour:    &hour,
			MaxRunsPerDay:        4,
			CheckIntervalMinutes: 15,
		},
		LastReason: "hour 10 already executed",
	}}
	h := Handlers{
		Health:    handler.NewHealthHandler(time.Now()),
		Status:    handler.NewStatusHandler("trade", clock, sched),
		Positions: handler.NewPositionHandler(pos, quietLogger()),
		Audit:     handler.NewAuditHandler(audit, quietLogger()),
	}
	return NewServer(cfg, h, limiter, quietLogger()).Handler()
}

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, Config{APIKey: "secret"}, fakePositions{}, &fakeAudit{}, nil)
	rec := get(t, h, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, health must not need auth", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAuthRequiredForStatus(t *testing.T) {
	h := newTestServer(t, Config{APIKey: "secret"}, fakePositions{}, &fakeAudit{}, nil)
	if rec := get(t, h, "/api/status", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/status", map[string]string{"Authorization": "Bearer wrong"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/status", map[string]string{"X-API-Key": "secret"}); rec.Code != http.StatusOK {
		t.Errorf("good token: status = %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	h := newTestServer(t, Config{}, fakePositions{}, &fakeAudit{}, nil)
	rec := get(t, h, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Mode   string `json:"mode"`
		Market struct {
			Phase           string `json:"phase"`
			CanTradeOptions bool   `json:"can_trade_options"`
		} `json:"market"`
		Scheduler struct {
			Phase             string `json:"phase"`
			TradingDay        string `json:"trading_day"`
			RunsToday         int    `json:"runs_today"`
			TargetHours       []int  `json:"target_hours"`
			LastExecutionHour *int   `json:"last_execution_hour"`
		} `json:"scheduler"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "trade" || body.Market.Phase != "regular_hours" || !body.Market.CanTradeOptions {
		t.Errorf("market = %+v", body.Market)
	}
	s := body.Scheduler
	if s.Phase != "MONITORING" || s.TradingDay != "2025-06-02" || s.RunsToday != 1 {
		t.Errorf("scheduler = %+v", s)
	}
	if len(s.TargetHours) != 4 || s.LastExecutionHour == nil || *s.LastExecutionHour != 10 {
		t.Errorf("scheduler hours = %+v", s)
	}
}

func TestPositions(t *testing.T) {
	pos := fakePositions{positions: []domain.Position{
		{Symbol: "AAPL", SharesOwned: 100, AvgEntryPrice: decimal.NewFromInt(190)},
		{Symbol: "F", SharesOwned: 0, OpenContract: &domain.Contract{
			ID: "F250620P00010000", Underlying: "F", Type: domain.OptionTypePut,
			Strike: decimal.NewFromInt(10), Expiry: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
			PremiumCollected: decimal.NewFromInt(25), Status: domain.ContractStatusOpen,
		}},
	}}
	h := newTestServer(t, Config{}, pos, &fakeAudit{}, nil)
	rec := get(t, h, "/api/positions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"state":"OWNED"`, `"action":"SELL_CALL"`, `"state":"PUT_SOLD"`, `"strike":"10.00"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
}

func TestPositionsBrokerError(t *testing.T) {
	h := newTestServer(t, Config{}, fakePositions{err: errors.New("down")}, &fakeAudit{}, nil)
	if rec := get(t, h, "/api/positions", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestAuditPagination(t *testing.T) {
	audit := &fakeAudit{}
	h := newTestServer(t, Config{}, fakePositions{}, audit, nil)
	rec := get(t, h, "/api/audit?limit=1000&offset=5&since=2025-06-01T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if audit.opts.Limit != 500 || audit.opts.Offset != 5 || audit.opts.Since == nil {
		t.Errorf("opts = %+v", audit.opts)
	}
	if !strings.Contains(rec.Body.String(), `"event":"pass_complete"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, Config{}, fakePositions{}, &fakeAudit{}, nil)
	rec := get(t, h, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "wheelbot_") {
		t.Errorf("metrics status=%d", rec.Code)
	}
}

func TestRateLimited(t *testing.T) {
	h := newTestServer(t, Config{RateLimit: 1, RateWindow: time.Second}, fakePositions{}, &fakeAudit{}, denyLimiter{})
	if rec := get(t, h, "/api/status", nil); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Config{CORSOrigins: []string{"http://localhost:3000"}}, fakePositions{}, &fakeAudit{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("preflight: %d %v", rec.Code, rec.Header())
	}
}
