// Package alpaca is the REST gateway to the Alpaca trading and market data
// APIs. It implements domain.BrokerGateway and domain.Liquidator.
package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

const (
	PaperTradingURL = "https://paper-api.alpaca.markets"
	LiveTradingURL  = "https://api.alpaca.markets"
	DataURL         = "https://data.alpaca.markets"

	contractsPageLimit = 1000
	snapshotBatch      = 100
)

// Config holds credentials and endpoints.
type Config struct {
	APIKey     string
	SecretKey  string
	Paper      bool
	TradingURL string // overrides the paper/live default
	DataURL    string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to Alpaca over two resty clients, one per API host.
type Client struct {
	trading *resty.Client
	data    *resty.Client
}

// NewClient creates a Client. Missing credentials are rejected here so the
// process fails before any trading activity.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("alpaca: %w: api key and secret are required", domain.ErrUnauthorized)
	}
	tradingURL := cfg.TradingURL
	if tradingURL == "" {
		tradingURL = LiveTradingURL
		if cfg.Paper {
			tradingURL = PaperTradingURL
		}
	}
	dataURL := cfg.DataURL
	if dataURL == "" {
		dataURL = DataURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	build := func(base string) *resty.Client {
		return resty.New().
			SetBaseURL(base).
			SetTimeout(timeout).
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(500*time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
			}).
			SetHeader("APCA-API-KEY-ID", cfg.APIKey).
			SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey).
			SetHeader("Accept", "application/json")
	}
	return &Client{trading: build(tradingURL), data: build(dataURL)}, nil
}

// Account returns the trading account.
func (c *Client) Account(ctx context.Context) (APIAccount, error) {
	var acct APIAccount
	resp, err := c.trading.R().SetContext(ctx).SetResult(&acct).Get("/v2/account")
	if err := checkResponse(resp, err); err != nil {
		return APIAccount{}, fmt.Errorf("alpaca: get account: %w", err)
	}
	return acct, nil
}

// BuyingPower returns the account's options buying power, falling back to
// regular buying power for accounts without an options figure.
func (c *Client) BuyingPower(ctx context.Context) (decimal.Decimal, error) {
	acct, err := c.Account(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if acct.OptionsBuyingPower.IsPositive() {
		return acct.OptionsBuyingPower, nil
	}
	return acct.BuyingPower, nil
}

// Positions returns all open positions folded by underlying.
func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var rows []APIPosition
	resp, err := c.trading.R().SetContext(ctx).SetResult(&rows).Get("/v2/positions")
	if err := checkResponse(resp, err); err != nil {
		return nil, fmt.Errorf("alpaca: get positions: %w", err)
	}
	positions, err := foldPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("alpaca: get positions: %w", err)
	}
	return positions, nil
}

// LatestTrade returns the last trade price for an equity.
func (c *Client) LatestTrade(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out latestTrade
	resp, err := c.data.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetResult(&out).
		Get("/v2/stocks/{symbol}/trades/latest")
	if err := checkResponse(resp, err); err != nil {
		return decimal.Zero, fmt.Errorf("alpaca: latest trade %s: %w", symbol, err)
	}
	if !out.Trade.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("alpaca: latest trade %s: %w", symbol, domain.ErrQuoteUnavailable)
	}
	return out.Trade.Price, nil
}

// OptionChain lists active contracts for symbol inside the filter's expiry
// window and merges each with its snapshot. Contracts without a snapshot are
// dropped.
func (c *Client) OptionChain(ctx context.Context, symbol string, filter domain.ChainFilter) ([]domain.Contract, error) {
	params := map[string]string{
		"underlying_symbols": symbol,
		"status":             "active",
		"limit":              strconv.Itoa(contractsPageLimit),
	}
	if filter.Type != "" {
		params["type"] = strings.ToLower(string(filter.Type))
	}
	if !filter.MinExpiry.IsZero() {
		params["expiration_date_gte"] = filter.MinExpiry.Format(time.DateOnly)
	}
	if !filter.MaxExpiry.IsZero() {
		params["expiration_date_lte"] = filter.MaxExpiry.Format(time.DateOnly)
	}

	var listed []APIOptionContract
	for {
		var page contractsPage
		resp, err := c.trading.R().SetContext(ctx).SetQueryParams(params).SetResult(&page).Get("/v2/options/contracts")
		if err := checkResponse(resp, err); err != nil {
			return nil, fmt.Errorf("alpaca: option contracts %s: %w", symbol, err)
		}
		listed = append(listed, page.OptionContracts...)
		if page.NextPageToken == nil || *page.NextPageToken == "" {
			break
		}
		params["page_token"] = *page.NextPageToken
	}

	symbols := make([]string, 0, len(listed))
	for _, lc := range listed {
		symbols = append(symbols, lc.Symbol)
	}
	snaps, err := c.Snapshots(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("alpaca: option chain %s: %w", symbol, err)
	}

	out := make([]domain.Contract, 0, len(listed))
	for _, lc := range listed {
		snap, ok := snaps[lc.Symbol]
		if !ok {
			continue
		}
		ct, err := toContract(lc, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// Snapshots fetches option snapshots in batches.
func (c *Client) Snapshots(ctx context.Context, symbols []string) (map[string]APISnapshot, error) {
	out := make(map[string]APISnapshot, len(symbols))
	for start := 0; start < len(symbols); start += snapshotBatch {
		end := min(start+snapshotBatch, len(symbols))
		params := map[string]string{"symbols": strings.Join(symbols[start:end], ",")}
		for {
			var page snapshotsPage
			resp, err := c.data.R().SetContext(ctx).SetQueryParams(params).SetResult(&page).Get("/v1beta1/options/snapshots")
			if err := checkResponse(resp, err); err != nil {
				return nil, fmt.Errorf("alpaca: option snapshots: %w", err)
			}
			for sym, s := range page.Snapshots {
				out[sym] = s
			}
			if page.NextPageToken == nil || *page.NextPageToken == "" {
				break
			}
			params["page_token"] = *page.NextPageToken
		}
	}
	return out, nil
}

// SubmitOrder places a single-contract market order. A broker rejection is
// returned as a REJECTED result, not an error; transport failures and
// authorization problems are errors.
func (c *Client) SubmitOrder(ctx context.Context, contract domain.Contract, action domain.OrderAction) (domain.OrderResult, error) {
	side := "sell"
	if action == domain.OrderActionBuyToClose {
		side = "buy"
	}
	req := APIOrderRequest{
		Symbol:        contract.ID,
		Qty:           "1",
		Side:          side,
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: "wheelbot-" + uuid.NewString(),
	}

	var order APIOrder
	resp, err := c.trading.R().SetContext(ctx).SetBody(req).SetResult(&order).Post("/v2/orders")
	if err := checkResponse(resp, err); err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			return domain.OrderResult{Status: domain.OrderStatusRejected, Reason: rej.Error()}, nil
		}
		return domain.OrderResult{Status: domain.OrderStatusError, Reason: err.Error()}, fmt.Errorf("alpaca: submit order %s: %w", contract.ID, err)
	}
	return domain.OrderResult{OrderID: order.ID, Status: domain.OrderStatusFilled, Reason: order.Status}, nil
}

// LiquidateAll closes every position and cancels open orders.
func (c *Client) LiquidateAll(ctx context.Context) error {
	resp, err := c.trading.R().SetContext(ctx).SetQueryParam("cancel_orders", "true").Delete("/v2/positions")
	if err := checkResponse(resp, err); err != nil {
		return fmt.Errorf("alpaca: liquidate: %w", err)
	}
	return nil
}

// rejection is an order the broker refused for a business reason.
type rejection struct {
	apiErr APIError
	cause  error
}

func (r *rejection) Error() string {
	msg := r.apiErr.Message
	if errors.Is(r.cause, domain.ErrInsufficientBuyingPower) && !strings.Contains(strings.ToLower(msg), r.cause.Error()) {
		msg = r.cause.Error() + ": " + msg
	}
	if r.apiErr.RequiredOptionsBuyingPower.IsPositive() {
		msg = fmt.Sprintf("%s (required: %s, available: %s)", msg,
			r.apiErr.RequiredOptionsBuyingPower.StringFixed(2), r.apiErr.OptionsBuyingPower.StringFixed(2))
	}
	return msg
}

func (r *rejection) Unwrap() error { return r.cause }

// checkResponse maps transport errors and non-2xx statuses to domain errors.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	status := resp.StatusCode()
	if status >= 200 && status < 300 {
		return nil
	}

	var apiErr APIError
	_ = json.Unmarshal(resp.Body(), &apiErr)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	lower := strings.ToLower(apiErr.Message)

	switch {
	case strings.Contains(lower, "insufficient") && strings.Contains(lower, "buying power"):
		return &rejection{apiErr: apiErr, cause: domain.ErrInsufficientBuyingPower}
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr.Message)
	case status == http.StatusForbidden:
		if strings.Contains(lower, "forbidden") || strings.Contains(lower, "not authorized") || strings.Contains(lower, "access key") {
			return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr.Message)
		}
		return &rejection{apiErr: apiErr, cause: domain.ErrInvalidOrder}
	case status == http.StatusUnprocessableEntity:
		return &rejection{apiErr: apiErr, cause: domain.ErrInvalidOrder}
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Message)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, apiErr.Message)
	default:
		return fmt.Errorf("HTTP %d: %s", status, apiErr.Message)
	}
}

// Compile-time interface checks.
var (
	_ domain.BrokerGateway = (*Client)(nil)
	_ domain.Liquidator    = (*Client)(nil)
)
