package event

import (
	"github.com/shopspring/decimal"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

// Type identifies the kind of a translated stream event.
type Type string

const (
	TypeTickerBatch     Type = "tickerBatch"
	TypeStreamError     Type = "streamError"
	TypeAccountPosition Type = "outboundAccountPosition"
	TypeBalanceRemoval  Type = "balanceUpdate"
	TypeOrderUpdate     Type = "executionReport"
)

// Event is one inbound stream message translated into a typed form. Events
// carry data only; applying them to the cache is the translator's job.
type Event interface {
	Type() Type
}

// TickerUpdate is a single symbol price from the all-market ticker stream.
type TickerUpdate struct {
	Symbol string
	Price  decimal.Decimal
}

// TickerBatch is one frame of the all-market ticker stream. Batches are
// pooled; see AcquireTickerBatch/ReleaseTickerBatch.
type TickerBatch struct {
	Updates []TickerUpdate
}

func (*TickerBatch) Type() Type { return TypeTickerBatch }

// StreamError is an in-band error payload delivered on an otherwise healthy
// connection. The supervisor reacts by restarting the subscription.
type StreamError struct {
	Raw []byte
}

func (*StreamError) Type() Type { return TypeStreamError }

// AssetBalance is one entry of an outboundAccountPosition payload.
type AssetBalance struct {
	Asset string
	Free  decimal.Decimal
}

// AccountPosition carries the free balances reported by an
// outboundAccountPosition event.
type AccountPosition struct {
	Balances []AssetBalance
}

func (*AccountPosition) Type() Type { return TypeAccountPosition }

// BalanceRemoval drops an asset from the balance cache in response to a
// balanceUpdate event.
type BalanceRemoval struct {
	Asset string
}

func (*BalanceRemoval) Type() Type { return TypeBalanceRemoval }

// OrderUpdate carries the order record projected from an executionReport.
type OrderUpdate struct {
	Order *domain.Order
}

func (*OrderUpdate) Type() Type { return TypeOrderUpdate }
