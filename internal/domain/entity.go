package domain

import (
	"time"
)

// FillRecord is one executionReport appended to the order journal. This is
// trade history, not cache state; the live cache is never rebuilt from it.
type FillRecord struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	OrderID      int64  `gorm:"index" json:"order_id"`
	Symbol       string `gorm:"index" json:"symbol"`
	Side         string `json:"side"`
	Type         string `json:"type"`
	CumQuoteQty  string `json:"cum_quote_qty"` // decimal string, exact as received
	Status       string `json:"status"`
	Price        string `json:"price"`
	TransactTime int64  `json:"transact_time"` // unix milliseconds
	RecordedAt   time.Time `json:"recorded_at"`
}
