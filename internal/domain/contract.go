package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionType distinguishes puts from calls.
type OptionType string

const (
	OptionTypePut  OptionType = "PUT"
	OptionTypeCall OptionType = "CALL"
)

// ContractStatus tracks a sold contract after it leaves the order book.
type ContractStatus string

const (
	ContractStatusOpen       ContractStatus = "OPEN"
	ContractStatusExpired    ContractStatus = "EXPIRED"
	ContractStatusAssigned   ContractStatus = "ASSIGNED"
	ContractStatusCalledAway ContractStatus = "CALLED_AWAY"
)

// SharesPerContract is the standard equity option multiplier.
const SharesPerContract = 100

// Contract is a single listed option contract. Everything except Status is
// fixed once the contract has been sold.
type Contract struct {
	ID               string // OCC symbol, e.g. "AAPL250620P00200000"
	Underlying       string
	Type             OptionType
	Strike           decimal.Decimal
	Expiry           time.Time // calendar date, time-of-day ignored
	Delta            float64
	OpenInterest     int64
	Bid              decimal.Decimal
	PremiumCollected decimal.Decimal
	Status           ContractStatus
}

// IsOpen reports whether the contract is still working against the account.
func (c Contract) IsOpen() bool {
	return c.Status == ContractStatusOpen
}

// Yield is bid / strike, the raw per-period return on the secured notional.
func (c Contract) Yield() float64 {
	if c.Strike.Sign() <= 0 {
		return 0
	}
	y, _ := c.Bid.Div(c.Strike).Float64()
	return y
}

// DaysToExpiry returns whole calendar days between asOf's calendar date and
// the expiry date, floored at zero.
func (c Contract) DaysToExpiry(asOf time.Time) int {
	from := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(c.Expiry.Year(), c.Expiry.Month(), c.Expiry.Day(), 0, 0, 0, 0, time.UTC)
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Notional is strike × 100, the cash needed to secure one short put.
func (c Contract) Notional() decimal.Decimal {
	return c.Strike.Mul(decimal.NewFromInt(SharesPerContract))
}

// Candidate is a contract that survived filtering, with its score. It only
// lives for the duration of a scoring pass.
type Candidate struct {
	Symbol   string
	Contract Contract
	Score    float64
}
