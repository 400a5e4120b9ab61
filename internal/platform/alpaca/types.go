package alpaca

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

// --------------------------------------------------------------------------
// Trading API DTOs
// --------------------------------------------------------------------------

// APIAccount is the subset of /v2/account the bot reads.
type APIAccount struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	BuyingPower        decimal.Decimal `json:"buying_power"`
	OptionsBuyingPower decimal.Decimal `json:"options_buying_power"`
	Cash               decimal.Decimal `json:"cash"`
}

// APIPosition is one row of /v2/positions.
type APIPosition struct {
	Symbol        string          `json:"symbol"`
	AssetClass    string          `json:"asset_class"` // "us_equity" or "us_option"
	Side          string          `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPL  decimal.Decimal `json:"unrealized_pl"`
	MarketValue   decimal.Decimal `json:"market_value"`
}

// APIOptionContract is one listed contract from /v2/options/contracts.
type APIOptionContract struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	UnderlyingSymbol string          `json:"underlying_symbol"`
	Type             string          `json:"type"` // "put" or "call"
	Status           string          `json:"status"`
	StrikePrice      decimal.Decimal `json:"strike_price"`
	ExpirationDate   string          `json:"expiration_date"`
	OpenInterest     string          `json:"open_interest"`
}

type contractsPage struct {
	OptionContracts []APIOptionContract `json:"option_contracts"`
	NextPageToken   *string             `json:"next_page_token"`
}

// APIOrderRequest is the body of POST /v2/orders.
type APIOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// APIOrder is the response to an order submission.
type APIOrder struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
}

// APIError is the error envelope returned by both APIs.
type APIError struct {
	Code                       int             `json:"code"`
	Message                    string          `json:"message"`
	RequiredOptionsBuyingPower decimal.Decimal `json:"required_options_buying_power"`
	OptionsBuyingPower         decimal.Decimal `json:"options_buying_power"`
}

// --------------------------------------------------------------------------
// Market data API DTOs
// --------------------------------------------------------------------------

type latestTrade struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		Price decimal.Decimal `json:"p"`
		Time  time.Time       `json:"t"`
	} `json:"trade"`
}

// APISnapshot is the option snapshot with quote and greeks.
type APISnapshot struct {
	LatestQuote *struct {
		BidPrice decimal.Decimal `json:"bp"`
		AskPrice decimal.Decimal `json:"ap"`
	} `json:"latestQuote"`
	Greeks *struct {
		Delta float64 `json:"delta"`
	} `json:"greeks"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

type snapshotsPage struct {
	Snapshots     map[string]APISnapshot `json:"snapshots"`
	NextPageToken *string                `json:"next_page_token"`
}

// --------------------------------------------------------------------------
// Conversions
// --------------------------------------------------------------------------

// occPattern matches OCC option symbols: root, YYMMDD, C/P, strike x 1000.
var occPattern = regexp.MustCompile(`^([A-Z][A-Z0-9.]{0,5})(\d{6})([CP])(\d{8})$`)

// ParseOCC decodes an OCC option symbol into a contract skeleton.
func ParseOCC(symbol string) (domain.Contract, error) {
	m := occPattern.FindStringSubmatch(symbol)
	if m == nil {
		return domain.Contract{}, fmt.Errorf("alpaca: not an OCC symbol: %q", symbol)
	}
	expiry, err := time.Parse("060102", m[2])
	if err != nil {
		return domain.Contract{}, fmt.Errorf("alpaca: OCC expiry %q: %w", m[2], err)
	}
	milli, err := strconv.ParseInt(m[4], 10, 64)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("alpaca: OCC strike %q: %w", m[4], err)
	}
	typ := domain.OptionTypePut
	if m[3] == "C" {
		typ = domain.OptionTypeCall
	}
	return domain.Contract{
		ID:         symbol,
		Underlying: m[1],
		Type:       typ,
		Strike:     decimal.New(milli, -3),
		Expiry:     expiry,
		Status:     domain.ContractStatusOpen,
	}, nil
}

// toContract merges a listed contract with its snapshot.
func toContract(c APIOptionContract, snap APISnapshot) (domain.Contract, error) {
	expiry, err := time.Parse(time.DateOnly, c.ExpirationDate)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("alpaca: contract %s expiry: %w", c.Symbol, err)
	}
	var oi int64
	if c.OpenInterest != "" {
		if oi, err = strconv.ParseInt(c.OpenInterest, 10, 64); err != nil {
			return domain.Contract{}, fmt.Errorf("alpaca: contract %s open interest: %w", c.Symbol, err)
		}
	}
	typ := domain.OptionTypePut
	if c.Type == "call" {
		typ = domain.OptionTypeCall
	}
	out := domain.Contract{
		ID:           c.Symbol,
		Underlying:   c.UnderlyingSymbol,
		Type:         typ,
		Strike:       c.StrikePrice,
		Expiry:       expiry,
		OpenInterest: oi,
		Status:       domain.ContractStatusOpen,
	}
	if snap.LatestQuote != nil {
		out.Bid = snap.LatestQuote.BidPrice
	}
	if snap.Greeks != nil {
		out.Delta = snap.Greeks.Delta
	}
	return out, nil
}

// foldPositions combines equity and option rows into one Position per
// underlying. Short option rows become the position's open contract.
func foldPositions(rows []APIPosition) ([]domain.Position, error) {
	bySymbol := make(map[string]*domain.Position)
	var order []string
	get := func(sym string) *domain.Position {
		p, ok := bySymbol[sym]
		if !ok {
			p = &domain.Position{Symbol: sym}
			bySymbol[sym] = p
			order = append(order, sym)
		}
		return p
	}

	for _, r := range rows {
		if r.AssetClass == "us_option" {
			c, err := ParseOCC(r.Symbol)
			if err != nil {
				return nil, err
			}
			if !r.Qty.IsNegative() {
				// long options are not part of the wheel
				continue
			}
			c.PremiumCollected = r.AvgEntryPrice.Mul(r.Qty.Abs()).Mul(decimal.NewFromInt(domain.SharesPerContract))
			p := get(c.Underlying)
			p.OpenContract = &c
			continue
		}
		p := get(r.Symbol)
		if r.Qty.IsPositive() {
			p.SharesOwned = r.Qty.IntPart()
		}
		p.AvgEntryPrice = r.AvgEntryPrice
		p.CurrentPrice = r.CurrentPrice
		p.UnrealizedPnL = r.UnrealizedPL
	}

	out := make([]domain.Position, 0, len(order))
	for _, sym := range order {
		out = append(out, *bySymbol[sym])
	}
	return out, nil
}
