package app

import (
	"log/slog"

	"github.com/henrytriplette/binance-trade-bot/internal/event"
	"github.com/henrytriplette/binance-trade-bot/internal/infra"
	"github.com/henrytriplette/binance-trade-bot/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Journal *storage.Journal
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, journal)
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping stream cache", slog.String("app", cfg.App.Name))

	// 3. Warm the event pool before the first ticker frame lands
	event.Warmup()

	// 4. Optional order journal
	if cfg.Journal.Enabled {
		journal, err := storage.NewJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		b.Journal = journal
		slog.Info("✅ Order journal ready", slog.String("path", cfg.Journal.Path))
	}

	return nil
}

// Shutdown releases resources acquired by Initialize
func (b *Bootstrap) Shutdown() {
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Warn("failed to close order journal", slog.Any("error", err))
		}
	}
}
