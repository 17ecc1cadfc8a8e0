package domain

import "github.com/shopspring/decimal"

// Order is the last known state of a single exchange order, projected from
// the most recent executionReport event received for its id. Records are
// overwritten per id and never deleted.
type Order struct {
	ID           int64
	Symbol       string
	Side         string // "BUY", "SELL"
	Type         string // "LIMIT", "MARKET", ...
	CumQuoteQty  decimal.Decimal // cumulative filled quote quantity
	Status       string
	Price        decimal.Decimal
	TransactTime int64  // exchange transaction time, unix milliseconds
	Raw          []byte // originating executionReport payload
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LIMIT"
	OrderTypeMarket = "MARKET"

	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusRejected        = "REJECTED"
	OrderStatusExpired         = "EXPIRED"
)

// IsOpen checks if the order is still active.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}
