// Package service layers cross-cutting policy over the broker gateway.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

const rateLimitKey = "broker"

// BrokerService wraps a BrokerGateway with a shared call budget and an
// optional dry-run mode. In dry run, reads go to the broker while order
// submission and liquidation are only logged.
type BrokerService struct {
	gateway domain.BrokerGateway
	limiter domain.RateLimiter
	dryRun  bool
	logger  *slog.Logger
}

var (
	_ domain.BrokerGateway = (*BrokerService)(nil)
	_ domain.Liquidator    = (*BrokerService)(nil)
)

// NewBrokerService creates a BrokerService. limiter may be nil.
func NewBrokerService(gateway domain.BrokerGateway, limiter domain.RateLimiter, dryRun bool, logger *slog.Logger) *BrokerService {
	return &BrokerService{
		gateway: gateway,
		limiter: limiter,
		dryRun:  dryRun,
		logger:  logger.With(slog.String("component", "broker_service")),
	}
}

// DryRun reports whether orders are simulated.
func (s *BrokerService) DryRun() bool {
	return s.dryRun
}

func (s *BrokerService) wait(ctx context.Context, op string) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx, rateLimitKey); err != nil {
		return fmt.Errorf("broker_service: %s: %w", op, err)
	}
	return nil
}

func (s *BrokerService) Positions(ctx context.Context) ([]domain.Position, error) {
	if err := s.wait(ctx, "positions"); err != nil {
		return nil, err
	}
	return s.gateway.Positions(ctx)
}

func (s *BrokerService) BuyingPower(ctx context.Context) (decimal.Decimal, error) {
	if err := s.wait(ctx, "buying power"); err != nil {
		return decimal.Zero, err
	}
	return s.gateway.BuyingPower(ctx)
}

func (s *BrokerService) OptionChain(ctx context.Context, symbol string, filter domain.ChainFilter) ([]domain.Contract, error) {
	if err := s.wait(ctx, "option chain"); err != nil {
		return nil, err
	}
	return s.gateway.OptionChain(ctx, symbol, filter)
}

func (s *BrokerService) LatestTrade(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := s.wait(ctx, "latest trade"); err != nil {
		return decimal.Zero, err
	}
	return s.gateway.LatestTrade(ctx, symbol)
}

// SubmitOrder forwards the order, or in dry run logs it and reports FILLED.
func (s *BrokerService) SubmitOrder(ctx context.Context, c domain.Contract, action domain.OrderAction) (domain.OrderResult, error) {
	if s.dryRun {
		id := "dry-run-" + uuid.NewString()
		s.logger.InfoContext(ctx, "dry run order",
			slog.String("order_id", id),
			slog.String("contract", c.ID),
			slog.String("action", string(action)),
			slog.String("bid", c.Bid.StringFixed(2)),
		)
		return domain.OrderResult{OrderID: id, Status: domain.OrderStatusFilled}, nil
	}
	if err := s.wait(ctx, "submit order"); err != nil {
		return domain.OrderResult{Status: domain.OrderStatusError, Reason: err.Error()}, err
	}
	return s.gateway.SubmitOrder(ctx, c, action)
}

// LiquidateAll closes every position when the gateway supports it. Dry run
// only logs.
func (s *BrokerService) LiquidateAll(ctx context.Context) error {
	if s.dryRun {
		s.logger.InfoContext(ctx, "dry run: skipping liquidation")
		return nil
	}
	liq, ok := s.gateway.(domain.Liquidator)
	if !ok {
		return fmt.Errorf("broker_service: liquidate: gateway does not support liquidation")
	}
	if err := s.wait(ctx, "liquidate"); err != nil {
		return err
	}
	return liq.LiquidateAll(ctx)
}
