package domain

import "github.com/shopspring/decimal"

// Position is the account's holding in one underlying as reported by the
// broker: shares owned plus at most one short option contract. It is rebuilt
// from broker data on every pass and never cached across restarts.
type Position struct {
	Symbol        string
	SharesOwned   int64
	AvgEntryPrice decimal.Decimal // acquisition price per share, zero when flat
	CurrentPrice  decimal.Decimal
	UnrealizedPnL decimal.Decimal
	OpenContract  *Contract
}

// HasOpenContract reports whether a sold contract is still working.
func (p Position) HasOpenContract() bool {
	return p.OpenContract != nil && p.OpenContract.IsOpen()
}

// Risk returns the capital committed to the position: cost basis of the
// shares plus the secured notional of a short put.
func (p Position) Risk() decimal.Decimal {
	risk := p.AvgEntryPrice.Mul(decimal.NewFromInt(p.SharesOwned))
	if p.HasOpenContract() && p.OpenContract.Type == OptionTypePut {
		risk = risk.Add(p.OpenContract.Notional())
	}
	return risk
}
