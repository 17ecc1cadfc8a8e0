package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/henrytriplette/binance-trade-bot/internal/app"
	"github.com/henrytriplette/binance-trade-bot/internal/domain"
	"github.com/henrytriplette/binance-trade-bot/internal/infra"
	"github.com/henrytriplette/binance-trade-bot/internal/infra/binance"
	"github.com/henrytriplette/binance-trade-bot/internal/service"
	"github.com/henrytriplette/binance-trade-bot/internal/stream"
)

func main() {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize("configs/config.yaml"); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config

	// 3. Cache + Gateways
	cache := service.NewCache()

	transport := binance.NewTransport(
		cfg.API.Binance.WSURL,
		time.Duration(cfg.Stream.PingIntervalSec)*time.Second,
		time.Duration(cfg.Stream.PongTimeoutSec)*time.Second,
		slog.Default(),
	)

	client := binance.NewClient(
		cfg.API.Binance.APIKey,
		cfg.API.Binance.APISecret,
		cfg.API.Binance.RestURL,
		slog.Default(),
	)

	// 4. Stream Supervisor
	opts := stream.Options{InboxSize: cfg.Stream.InboxSize}
	if bootstrap.Journal != nil {
		journal := bootstrap.Journal
		opts.OnOrder = func(o *domain.Order) {
			if err := journal.Record(o); err != nil {
				slog.Warn("failed to journal order update", slog.Int64("orderID", o.ID), slog.Any("error", err))
			}
		}
	}

	sup := stream.NewSupervisor(transport, cache, client, slog.Default(), opts)
	if err := sup.Start(ctx); err != nil {
		// A stream that never came up is reported here once; the in-band
		// restart path handles everything after establishment.
		slog.Error("stream establishment incomplete", slog.Any("error", err))
	}
	slog.InfoContext(ctx, "✅ Stream supervisor started")

	// 5. Listen key keepalive (Binance expires keys after 60 minutes)
	go client.KeepAliveLoop(ctx, time.Duration(cfg.Stream.ListenKeyRefreshMin)*time.Minute, sup.UserListenKey)

	// 6. Periodic metrics report
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := infra.GlobalMetrics.Snapshot()
				slog.Info("stream metrics",
					slog.Uint64("events", snap.EventsProcessed),
					slog.Uint64("restarts", snap.RestartsTotal),
					slog.Uint64("faults", snap.FaultsTotal),
					slog.Int("activeStreams", int(snap.ActiveStreams)),
				)
			}
		}
	}()

	slog.InfoContext(ctx, "✨ Stream cache fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal or an unrecoverable stream fault. A fault
	// means the cache can no longer be trusted, so we fail fast.
	select {
	case <-ctx.Done():
		slog.InfoContext(ctx, "👋 Shutting down gracefully...")
	case err := <-sup.Faults():
		slog.Error("unrecoverable stream fault", slog.Any("error", err))
	}

	sup.Close()
}
