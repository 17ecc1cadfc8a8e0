package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

func TestCache_TickerPriceLastWriteWins(t *testing.T) {
	c := NewCache()

	c.SetTickerPrice("BTCUSDT", decimal.NewFromInt(50000))
	c.SetTickerPrice("ETHUSDT", decimal.NewFromInt(3000))
	c.SetTickerPrice("BTCUSDT", decimal.NewFromInt(51000))

	price, ok := c.TickerPrice("BTCUSDT")
	if !ok {
		t.Fatal("BTCUSDT price should exist")
	}
	if !price.Equal(decimal.NewFromInt(51000)) {
		t.Errorf("expected 51000, got %v", price)
	}

	if _, ok := c.TickerPrice("XRPUSDT"); ok {
		t.Error("unknown symbol must not report a price")
	}
}

func TestCache_ClearTickerPrices(t *testing.T) {
	c := NewCache()

	c.SetTickerPrice("BTCUSDT", decimal.NewFromInt(50000))
	c.SetTickerPrice("ETHUSDT", decimal.NewFromInt(3000))
	c.ClearTickerPrices()

	if len(c.TickerPrices()) != 0 {
		t.Errorf("expected empty ticker prices, got %d entries", len(c.TickerPrices()))
	}
}

func TestCache_RemoveBalance(t *testing.T) {
	c := NewCache()

	c.SetBalance("BTC", decimal.NewFromFloat(0.5))
	if err := c.RemoveBalance("BTC"); err != nil {
		t.Fatalf("RemoveBalance failed: %v", err)
	}
	if _, ok := c.Balance("BTC"); ok {
		t.Error("BTC balance should be gone after removal")
	}
}

func TestCache_RemoveBalanceAbsent(t *testing.T) {
	c := NewCache()

	err := c.RemoveBalance("DOGE")
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestCache_NonExistentTickersAppendOnly(t *testing.T) {
	c := NewCache()

	c.MarkTickerNonExistent("FOOUSDT")
	c.MarkTickerNonExistent("FOOUSDT")
	c.MarkTickerNonExistent("BARUSDT")

	if !c.IsTickerNonExistent("FOOUSDT") {
		t.Error("FOOUSDT should be marked non-existent")
	}
	if c.IsTickerNonExistent("BTCUSDT") {
		t.Error("BTCUSDT should not be marked non-existent")
	}
	if got := len(c.NonExistentTickers()); got != 2 {
		t.Errorf("expected 2 marked symbols, got %d", got)
	}
}

func TestCache_OrderOverwrite(t *testing.T) {
	c := NewCache()

	c.SetOrder(&domain.Order{ID: 42, Symbol: "BTCUSDT", Status: domain.OrderStatusNew})
	c.SetOrder(&domain.Order{ID: 42, Symbol: "BTCUSDT", Status: domain.OrderStatusFilled})

	o, ok := c.Order(42)
	if !ok {
		t.Fatal("order 42 should exist")
	}
	if o.Status != domain.OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", o.Status)
	}
	if len(c.Orders()) != 1 {
		t.Errorf("expected 1 order record, got %d", len(c.Orders()))
	}
}

func TestCache_OpenOrders(t *testing.T) {
	c := NewCache()

	c.SetOrder(&domain.Order{ID: 1, Status: domain.OrderStatusNew})
	c.SetOrder(&domain.Order{ID: 2, Status: domain.OrderStatusFilled})
	c.SetOrder(&domain.Order{ID: 3, Status: domain.OrderStatusPartiallyFilled})

	open := c.OpenOrders()
	if len(open) != 2 {
		t.Errorf("expected 2 open orders, got %d", len(open))
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup

	// Two writers (ticker and user subscriptions) plus readers.
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.SetTickerPrice("BTCUSDT", decimal.NewFromInt(int64(i)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.SetBalance("BTC", decimal.NewFromInt(int64(i)))
			c.SetOrder(&domain.Order{ID: int64(i % 10), Status: domain.OrderStatusNew})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.TickerPrice("BTCUSDT")
			c.Balances()
			c.OpenOrders()
		}
	}()
	wg.Wait()

	if _, ok := c.TickerPrice("BTCUSDT"); !ok {
		t.Error("BTCUSDT price should exist after concurrent writes")
	}
}
