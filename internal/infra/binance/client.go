package binance

import (
	"context"
	"log/slog"
	"time"

	bapi "github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

// Client wraps the authenticated Binance REST client for the one thing the
// stream layer needs from it: user-data-stream listen keys. A limiter guards
// the listen-key endpoints so that restart storms cannot trip the venue's
// request weight limits.
type Client struct {
	api     *bapi.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient creates a REST collaborator. restURL overrides the default API
// host when non-empty (testnet, mocks).
func NewClient(apiKey, apiSecret, restURL string, log *slog.Logger) *Client {
	api := bapi.NewClient(apiKey, apiSecret)
	if restURL != "" {
		api.BaseURL = restURL
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:     log,
	}
}

// ListenKey obtains a fresh user-data stream listen key.
func (c *Client) ListenKey(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", domain.NewFatalTransportError("listen-key", err)
	}
	key, err := c.api.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return "", domain.NewTransportError("listen-key", err)
	}
	return key, nil
}

// KeepAliveLoop refreshes the active listen key every interval until ctx is
// cancelled. The venue expires idle keys after 60 minutes; failures are
// logged and retried on the next tick — the stream supervisor recovers from
// an expired key through its normal restart path.
func (c *Client) KeepAliveLoop(ctx context.Context, interval time.Duration, key func() string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		k := key()
		if k == "" {
			c.log.Debug("no listen key yet, skipping keepalive")
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		if err := c.api.NewKeepaliveUserStreamService().ListenKey(k).Do(ctx); err != nil {
			c.log.Warn("listen key keepalive failed", slog.Any("error", err))
		} else {
			c.log.Debug("listen key refreshed")
		}
	}
}
