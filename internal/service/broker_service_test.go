package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

type fakeGateway struct {
	submitted  int
	liquidated int
	calls      []string
}

func (f *fakeGateway) Positions(context.Context) ([]domain.Position, error) {
	f.calls = append(f.calls, "positions")
	return []domain.Position{{Symbol: "AAPL", SharesOwned: 100}}, nil
}

func (f *fakeGateway) BuyingPower(context.Context) (decimal.Decimal, error) {
	f.calls = append(f.calls, "buying_power")
	return decimal.NewFromInt(5000), nil
}

func (f *fakeGateway) OptionChain(context.Context, string, domain.ChainFilter) ([]domain.Contract, error) {
	f.calls = append(f.calls, "chain")
	return nil, nil
}

func (f *fakeGateway) LatestTrade(context.Context, string) (decimal.Decimal, error) {
	f.calls = append(f.calls, "trade")
	return decimal.NewFromInt(10), nil
}

func (f *fakeGateway) SubmitOrder(context.Context, domain.Contract, domain.OrderAction) (domain.OrderResult, error) {
	f.submitted++
	return domain.OrderResult{OrderID: "real", Status: domain.OrderStatusFilled}, nil
}

func (f *fakeGateway) LiquidateAll(context.Context) error {
	f.liquidated++
	return nil
}

type countingLimiter struct {
	waits int
	err   error
}

func (c *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (c *countingLimiter) Wait(context.Context, string) error {
	c.waits++
	return c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBrokerServiceRateLimitsEveryCall(t *testing.T) {
	gw := &fakeGateway{}
	lim := &countingLimiter{}
	s := NewBrokerService(gw, lim, false, quietLogger())
	ctx := context.Background()

	_, _ = s.Positions(ctx)
	_, _ = s.BuyingPower(ctx)
	_, _ = s.OptionChain(ctx, "AAPL", domain.ChainFilter{})
	_, _ = s.LatestTrade(ctx, "AAPL")
	_, _ = s.SubmitOrder(ctx, domain.Contract{ID: "X"}, domain.OrderActionSellToOpen)
	_ = s.LiquidateAll(ctx)

	if lim.waits != 6 {
		t.Errorf("waits = %d, want 6", lim.waits)
	}
	if gw.submitted != 1 || gw.liquidated != 1 {
		t.Errorf("submitted=%d liquidated=%d", gw.submitted, gw.liquidated)
	}
}

func TestBrokerServiceLimiterError(t *testing.T) {
	s := NewBrokerService(&fakeGateway{}, &countingLimiter{err: domain.ErrRateLimited}, false, quietLogger())
	if _, err := s.Positions(context.Background()); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	res, err := s.SubmitOrder(context.Background(), domain.Contract{}, domain.OrderActionSellToOpen)
	if err == nil || res.Status != domain.OrderStatusError {
		t.Fatalf("SubmitOrder = %+v, %v", res, err)
	}
}

func TestBrokerServiceDryRun(t *testing.T) {
	gw := &fakeGateway{}
	s := NewBrokerService(gw, nil, true, quietLogger())
	ctx := context.Background()

	res, err := s.SubmitOrder(ctx, domain.Contract{ID: "AAPL250620P00190000", Bid: decimal.RequireFromString("1.25")}, domain.OrderActionSellToOpen)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if !res.Accepted() || !strings.HasPrefix(res.OrderID, "dry-run-") {
		t.Errorf("result = %+v", res)
	}
	if err := s.LiquidateAll(ctx); err != nil {
		t.Fatalf("LiquidateAll: %v", err)
	}
	if gw.submitted != 0 || gw.liquidated != 0 {
		t.Errorf("dry run reached broker: submitted=%d liquidated=%d", gw.submitted, gw.liquidated)
	}

	pos, err := s.Positions(ctx)
	if err != nil || len(pos) != 1 {
		t.Errorf("reads should pass through in dry run: %v %v", pos, err)
	}
}

func TestBrokerServiceLiquidateUnsupported(t *testing.T) {
	// Embedding only the interface hides LiquidateAll.
	gw := struct{ domain.BrokerGateway }{&fakeGateway{}}
	s := NewBrokerService(gw, nil, false, quietLogger())
	if err := s.LiquidateAll(context.Background()); err == nil {
		t.Fatal("expected error for gateway without liquidation")
	}
}
