package domain

// OrderAction is the side submitted to the broker for an option leg.
type OrderAction string

const (
	OrderActionSellToOpen OrderAction = "sell_to_open"
	OrderActionBuyToClose OrderAction = "buy_to_close"
)

// OrderStatus is the terminal outcome of a submission as seen by the core.
// Retries and timeouts are resolved inside the gateway.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusError    OrderStatus = "ERROR"
)

// OrderResult wraps the broker response after order submission.
type OrderResult struct {
	OrderID string
	Status  OrderStatus
	Reason  string
}

// Accepted reports whether the broker took the order.
func (r OrderResult) Accepted() bool {
	return r.Status == OrderStatusFilled
}
