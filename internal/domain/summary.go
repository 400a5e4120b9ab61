package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Skip records why a symbol was passed over during a strategy pass.
type Skip struct {
	Symbol string
	Reason string
}

// PassSummary is the outcome of one strategy pass.
type PassSummary struct {
	PutsSold   []Contract
	CallsSold  []Contract
	Skipped    []Skip
	StartedAt  time.Time
	FinishedAt time.Time
}

// TotalPremium sums the premium collected over every contract sold in the pass.
func (s PassSummary) TotalPremium() decimal.Decimal {
	total := decimal.Zero
	for _, c := range append(append([]Contract{}, s.PutsSold...), s.CallsSold...) {
		total = total.Add(c.PremiumCollected)
	}
	return total
}
