package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// FilterAffordable keeps the symbols whose 100-share lot fits inside
// buyingPower at the latest trade price. Symbols without a price are skipped.
// Each symbol is checked against the full buying power on its own; committing
// capital across several symbols is left to the broker to reject.
func FilterAffordable(symbols []string, prices map[string]decimal.Decimal, buyingPower decimal.Decimal) ([]string, []domain.Skip) {
	lot := decimal.NewFromInt(domain.SharesPerContract)
	keep := make([]string, 0, len(symbols))
	var skipped []domain.Skip
	for _, sym := range symbols {
		price, ok := prices[sym]
		if !ok || price.Sign() <= 0 {
			skipped = append(skipped, domain.Skip{Symbol: sym, Reason: "quote unavailable"})
			continue
		}
		if price.Mul(lot).GreaterThan(buyingPower) {
			skipped = append(skipped, domain.Skip{
				Symbol: sym,
				Reason: "insufficient buying power for 100 shares at " + price.StringFixed(2),
			})
			continue
		}
		keep = append(keep, sym)
	}
	return keep, skipped
}
