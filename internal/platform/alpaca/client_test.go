package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/wheelbot/internal/domain"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "key", SecretKey: "secret", TradingURL: srv.URL, DataURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Config{APIKey: "key"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestParseOCC(t *testing.T) {
	c, err := ParseOCC("AAPL250620P00200500")
	if err != nil {
		t.Fatalf("ParseOCC: %v", err)
	}
	if c.Underlying != "AAPL" || c.Type != domain.OptionTypePut || !c.Strike.Equal(decimal.RequireFromString("200.5")) {
		t.Fatalf("contract = %+v", c)
	}
	if c.Expiry.Format(time.DateOnly) != "2025-06-20" {
		t.Fatalf("expiry = %s", c.Expiry)
	}
	if _, err := ParseOCC("AAPL"); err == nil {
		t.Fatalf("expected error for equity symbol")
	}
}

func TestPositionsFoldsOptions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[
			{"symbol":"XYZ","asset_class":"us_equity","side":"long","qty":"100","avg_entry_price":"20.5","current_price":"21","unrealized_pl":"50"},
			{"symbol":"XYZ250620C00022000","asset_class":"us_option","side":"short","qty":"-1","avg_entry_price":"0.4"},
			{"symbol":"ABC250620P00010000","asset_class":"us_option","side":"short","qty":"-1","avg_entry_price":"0.25"}
		]`))
	}))

	got, err := c.Positions(context.Background())
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("positions = %+v", got)
	}
	xyz, abc := got[0], got[1]
	if xyz.SharesOwned != 100 || !xyz.HasOpenContract() || xyz.OpenContract.Type != domain.OptionTypeCall {
		t.Fatalf("XYZ = %+v", xyz)
	}
	if abc.Symbol != "ABC" || abc.SharesOwned != 0 || abc.OpenContract.Type != domain.OptionTypePut {
		t.Fatalf("ABC = %+v", abc)
	}
	if !abc.OpenContract.PremiumCollected.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("premium = %s", abc.OpenContract.PremiumCollected)
	}
}

func TestBuyingPowerPrefersOptions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"acct","buying_power":"50000","options_buying_power":"24000.50"}`))
	}))
	bp, err := c.BuyingPower(context.Background())
	if err != nil {
		t.Fatalf("BuyingPower: %v", err)
	}
	if !bp.Equal(decimal.RequireFromString("24000.50")) {
		t.Fatalf("bp = %s", bp)
	}
}

func TestOptionChainMergesSnapshots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/options/contracts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("underlying_symbols") != "XYZ" || q.Get("type") != "put" || q.Get("expiration_date_lte") != "2025-06-23" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if q.Get("page_token") == "" {
			_, _ = w.Write([]byte(`{"option_contracts":[{"symbol":"XYZ250620P00020000","underlying_symbol":"XYZ","type":"put","strike_price":"20","expiration_date":"2025-06-20","open_interest":"812"}],"next_page_token":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"option_contracts":[{"symbol":"XYZ250620P00019000","underlying_symbol":"XYZ","type":"put","strike_price":"19","expiration_date":"2025-06-20","open_interest":null}],"next_page_token":null}`))
	})
	mux.HandleFunc("GET /v1beta1/options/snapshots", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Query().Get("symbols"), "XYZ250620P00020000") {
			t.Errorf("symbols = %s", r.URL.Query().Get("symbols"))
		}
		_, _ = w.Write([]byte(`{"snapshots":{"XYZ250620P00020000":{"latestQuote":{"bp":0.5,"ap":0.55},"greeks":{"delta":-0.21}}}}`))
	})
	c := newTestClient(t, mux)

	filter := domain.ChainFilter{
		Type:      domain.OptionTypePut,
		MinExpiry: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		MaxExpiry: time.Date(2025, 6, 23, 0, 0, 0, 0, time.UTC),
	}
	chain, err := c.OptionChain(context.Background(), "XYZ", filter)
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if len(chain) != 1 {
		t.Fatalf("chain = %+v, want the one contract with a snapshot", chain)
	}
	got := chain[0]
	if got.OpenInterest != 812 || got.Delta != -0.21 || !got.Bid.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("contract = %+v", got)
	}
}

func TestSubmitOrder(t *testing.T) {
	var body APIOrderRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch body.Symbol {
		case "OK250620P00020000":
			_, _ = w.Write([]byte(`{"id":"ord-1","status":"accepted"}`))
		case "BP250620P00020000":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":40310000,"message":"insufficient options buying power for cash-secured put","required_options_buying_power":"2000","options_buying_power":"1500"}`))
		case "BAD250620P00020000":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"code":42210000,"message":"asset not tradable"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":40110000,"message":"request is not authorized"}`))
		}
	}))
	ctx := context.Background()

	res, err := c.SubmitOrder(ctx, domain.Contract{ID: "OK250620P00020000"}, domain.OrderActionSellToOpen)
	if err != nil || !res.Accepted() || res.OrderID != "ord-1" {
		t.Fatalf("ok order: %+v, %v", res, err)
	}
	if body.Side != "sell" || body.Qty != "1" || body.Type != "market" || !strings.HasPrefix(body.ClientOrderID, "wheelbot-") {
		t.Fatalf("request = %+v", body)
	}

	res, err = c.SubmitOrder(ctx, domain.Contract{ID: "BP250620P00020000"}, domain.OrderActionSellToOpen)
	if err != nil || res.Status != domain.OrderStatusRejected {
		t.Fatalf("bp order: %+v, %v", res, err)
	}
	if !strings.Contains(res.Reason, "insufficient options buying power") || !strings.Contains(res.Reason, "required: 2000.00") {
		t.Fatalf("reason = %q", res.Reason)
	}

	res, err = c.SubmitOrder(ctx, domain.Contract{ID: "BAD250620P00020000"}, domain.OrderActionSellToOpen)
	if err != nil || res.Status != domain.OrderStatusRejected {
		t.Fatalf("bad order: %+v, %v", res, err)
	}

	if _, err = c.SubmitOrder(ctx, domain.Contract{ID: "X"}, domain.OrderActionSellToOpen); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestLatestTrade(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/stocks/XYZ/trades/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"XYZ","trade":{"p":20.12,"t":"2025-06-02T14:00:00Z"}}`))
	}))
	px, err := c.LatestTrade(context.Background(), "XYZ")
	if err != nil || !px.Equal(decimal.RequireFromString("20.12")) {
		t.Fatalf("LatestTrade = %s, %v", px, err)
	}
	if _, err := c.LatestTrade(context.Background(), "NOPE"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
