package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
	"github.com/henrytriplette/binance-trade-bot/internal/event"
	"github.com/henrytriplette/binance-trade-bot/internal/service"
)

// The translator is a pure mapping from raw stream frames to typed events and
// from typed events to cache mutations. It performs no I/O and never retries;
// recovery decisions belong to the supervisor.

// tickerEntry is one element of an all-market ticker frame.
type tickerEntry struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// errorProbe extracts the discriminant field of an object frame.
type errorProbe struct {
	EventType string `json:"e"`
}

// ParseTickerMessage translates one frame of the ticker stream. The frame is
// either a JSON array of per-symbol updates or a single in-band error object.
// A nil event means the frame is unrecognized and must be ignored.
func ParseTickerMessage(raw []byte) (event.Event, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []tickerEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, &domain.MalformedMessageError{Stream: "ticker", Field: "(frame)", Err: err}
		}

		batch := event.AcquireTickerBatch()
		for _, e := range entries {
			price, err := decimal.NewFromString(e.Close)
			if err != nil {
				event.ReleaseTickerBatch(batch)
				return nil, &domain.MalformedMessageError{Stream: "ticker", Field: "c", Err: err}
			}
			batch.Updates = append(batch.Updates, event.TickerUpdate{Symbol: e.Symbol, Price: price})
		}
		return batch, nil
	}

	var probe errorProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &domain.MalformedMessageError{Stream: "ticker", Field: "(frame)", Err: err}
	}
	if probe.EventType == "error" {
		return &event.StreamError{Raw: raw}, nil
	}
	return nil, nil
}

// ParseUserMessage translates one frame of the user-data stream. The `e`
// field selects the event kind; unrecognized kinds yield a nil event so that
// new venue event types do not break processing.
func ParseUserMessage(raw []byte) (event.Event, error) {
	var probe errorProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &domain.MalformedMessageError{Stream: "user", Field: "e", Err: err}
	}

	switch probe.EventType {
	case "error":
		return &event.StreamError{Raw: raw}, nil

	case "outboundAccountPosition":
		var msg struct {
			Balances []struct {
				Asset string `json:"a"`
				Free  string `json:"f"`
			} `json:"B"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, &domain.MalformedMessageError{Stream: "user", Field: "B", Err: err}
		}
		pos := &event.AccountPosition{Balances: make([]event.AssetBalance, 0, len(msg.Balances))}
		for _, b := range msg.Balances {
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return nil, &domain.MalformedMessageError{Stream: "user", Field: "f", Err: err}
			}
			pos.Balances = append(pos.Balances, event.AssetBalance{Asset: b.Asset, Free: free})
		}
		return pos, nil

	case "balanceUpdate":
		var msg struct {
			Asset string `json:"a"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, &domain.MalformedMessageError{Stream: "user", Field: "a", Err: err}
		}
		if msg.Asset == "" {
			return nil, &domain.MalformedMessageError{Stream: "user", Field: "a", Err: fmt.Errorf("missing asset")}
		}
		return &event.BalanceRemoval{Asset: msg.Asset}, nil

	case "executionReport":
		return parseExecutionReport(raw)
	}

	return nil, nil
}

func parseExecutionReport(raw []byte) (event.Event, error) {
	var msg struct {
		Symbol       string `json:"s"`
		Side         string `json:"S"`
		Type         string `json:"o"`
		ID           int64  `json:"i"`
		CumQuoteQty  string `json:"Z"`
		Status       string `json:"X"`
		Price        string `json:"p"`
		TransactTime int64  `json:"T"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &domain.MalformedMessageError{Stream: "user", Field: "(frame)", Err: err}
	}

	cumQuoteQty, err := decimal.NewFromString(msg.CumQuoteQty)
	if err != nil {
		return nil, &domain.MalformedMessageError{Stream: "user", Field: "Z", Err: err}
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return nil, &domain.MalformedMessageError{Stream: "user", Field: "p", Err: err}
	}

	order := &domain.Order{
		ID:           msg.ID,
		Symbol:       msg.Symbol,
		Side:         msg.Side,
		Type:         msg.Type,
		CumQuoteQty:  cumQuoteQty,
		Status:       msg.Status,
		Price:        price,
		TransactTime: msg.TransactTime,
		Raw:          append([]byte(nil), raw...),
	}
	return &event.OrderUpdate{Order: order}, nil
}

// Apply mutates the cache according to one translated event. StreamError is
// the supervisor's to handle and is a no-op here. Ticker batches are returned
// to the pool after application.
func Apply(ev event.Event, cache *service.Cache) error {
	switch e := ev.(type) {
	case *event.TickerBatch:
		for _, u := range e.Updates {
			cache.SetTickerPrice(u.Symbol, u.Price)
		}
		event.ReleaseTickerBatch(e)

	case *event.AccountPosition:
		for _, b := range e.Balances {
			cache.SetBalance(b.Asset, b.Free)
		}

	case *event.BalanceRemoval:
		if err := cache.RemoveBalance(e.Asset); err != nil {
			return fmt.Errorf("balanceUpdate for %s: %w", e.Asset, err)
		}

	case *event.OrderUpdate:
		cache.SetOrder(e.Order)
	}

	return nil
}
