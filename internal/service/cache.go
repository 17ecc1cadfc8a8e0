package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

// Cache is the process-wide store of last-known market and account state fed
// by the stream supervisor. All methods are safe for concurrent use and never
// touch the network. A single coarse lock is enough at the update rates the
// two streams produce.
type Cache struct {
	mu                 sync.RWMutex
	tickerPrices       map[string]decimal.Decimal
	balances           map[string]decimal.Decimal
	nonExistentTickers map[string]struct{}
	orders             map[int64]*domain.Order
}

// NewCache creates an empty Cache instance
func NewCache() *Cache {
	return &Cache{
		tickerPrices:       make(map[string]decimal.Decimal),
		balances:           make(map[string]decimal.Decimal),
		nonExistentTickers: make(map[string]struct{}),
		orders:             make(map[int64]*domain.Order),
	}
}

// SetTickerPrice stores the last known price for a symbol
func (c *Cache) SetTickerPrice(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickerPrices[symbol] = price
}

// TickerPrice returns the last known price for a symbol. The second return
// value is false when the symbol is unknown; absence is not a zero price.
func (c *Cache) TickerPrice(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	price, ok := c.tickerPrices[symbol]
	return price, ok
}

// TickerPrices returns a copy of all known ticker prices
func (c *Cache) TickerPrices() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]decimal.Decimal, len(c.tickerPrices))
	for k, v := range c.tickerPrices {
		result[k] = v
	}
	return result
}

// ClearTickerPrices removes all ticker prices. Used when the ticker
// subscription is torn down; updates missed during the gap are unrecoverable
// and must not be presented as still valid.
func (c *Cache) ClearTickerPrices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickerPrices = make(map[string]decimal.Decimal)
}

// SetBalance stores the free balance for an asset
func (c *Cache) SetBalance(asset string, free decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances[asset] = free
}

// Balance returns the free balance for an asset. The second return value is
// false when the asset is unknown; absence means "no known balance".
func (c *Cache) Balance(asset string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	free, ok := c.balances[asset]
	return free, ok
}

// Balances returns a copy of all known balances
func (c *Cache) Balances() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]decimal.Decimal, len(c.balances))
	for k, v := range c.balances {
		result[k] = v
	}
	return result
}

// RemoveBalance drops an asset from the balance cache. Removing an asset that
// is not present returns ErrUnknownAsset: an unexpected balanceUpdate points
// at protocol divergence and must not be masked.
func (c *Cache) RemoveBalance(asset string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.balances[asset]; !ok {
		return domain.ErrUnknownAsset
	}
	delete(c.balances, asset)
	return nil
}

// ClearBalances removes all balances. Used when the user subscription is torn
// down and rebuilt.
func (c *Cache) ClearBalances() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.balances = make(map[string]decimal.Decimal)
}

// MarkTickerNonExistent records a symbol the venue has reported as invalid.
// The set is append-only; members are never removed.
func (c *Cache) MarkTickerNonExistent(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nonExistentTickers[symbol] = struct{}{}
}

// IsTickerNonExistent reports whether a symbol was marked invalid
func (c *Cache) IsTickerNonExistent(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.nonExistentTickers[symbol]
	return ok
}

// NonExistentTickers returns a copy of all symbols marked invalid
func (c *Cache) NonExistentTickers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.nonExistentTickers))
	for s := range c.nonExistentTickers {
		result = append(result, s)
	}
	return result
}

// SetOrder stores an order record under its id, overwriting any prior record.
// Orders are never deleted; last write wins per id.
func (c *Cache) SetOrder(o *domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.orders[o.ID] = o
}

// Order returns the last known record for an order id
func (c *Cache) Order(id int64) (*domain.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o, ok := c.orders[id]
	return o, ok
}

// Orders returns a copy of all known order records
func (c *Cache) Orders() map[int64]*domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[int64]*domain.Order, len(c.orders))
	for k, v := range c.orders {
		result[k] = v
	}
	return result
}

// OpenOrders returns the records still in an active status
func (c *Cache) OpenOrders() []*domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*domain.Order, 0)
	for _, o := range c.orders {
		if o.IsOpen() {
			result = append(result, o)
		}
	}
	return result
}
