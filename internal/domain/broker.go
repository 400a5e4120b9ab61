package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ChainFilter narrows an option chain query.
type ChainFilter struct {
	Type      OptionType
	MinExpiry time.Time
	MaxExpiry time.Time
}

// BrokerGateway is the account of record. Implementations own transport,
// timeouts and retries; the core only sees terminal success or failure.
type BrokerGateway interface {
	Positions(ctx context.Context) ([]Position, error)
	BuyingPower(ctx context.Context) (decimal.Decimal, error)
	OptionChain(ctx context.Context, symbol string, filter ChainFilter) ([]Contract, error)
	LatestTrade(ctx context.Context, symbol string) (decimal.Decimal, error)
	SubmitOrder(ctx context.Context, contract Contract, action OrderAction) (OrderResult, error)
}

// Liquidator is implemented by gateways that can flatten the account.
type Liquidator interface {
	LiquidateAll(ctx context.Context) error
}

// MarketClock reports exchange calendar status for a wall-clock instant.
type MarketClock interface {
	Status(now time.Time) MarketStatus
}
