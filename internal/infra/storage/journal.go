package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/henrytriplette/binance-trade-bot/internal/domain"
)

// Journal appends executionReport records to SQLite. It is an observer of
// the stream, not a backing store: the live cache is never rebuilt from it.
type Journal struct {
	db *gorm.DB
}

// NewJournal opens (and if needed creates) the journal database at path.
func NewJournal(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	// Pure Go SQLite driver; no cgo.
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.AutoMigrate(&domain.FillRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one order update to the journal.
func (j *Journal) Record(o *domain.Order) error {
	rec := &domain.FillRecord{
		OrderID:      o.ID,
		Symbol:       o.Symbol,
		Side:         o.Side,
		Type:         o.Type,
		CumQuoteQty:  o.CumQuoteQty.String(),
		Status:       o.Status,
		Price:        o.Price.String(),
		TransactTime: o.TransactTime,
		RecordedAt:   time.Now(),
	}
	return j.db.Create(rec).Error
}

// History returns every recorded update for an order id, oldest first.
func (j *Journal) History(orderID int64) ([]domain.FillRecord, error) {
	var recs []domain.FillRecord
	err := j.db.Where("order_id = ?", orderID).Order("id asc").Find(&recs).Error
	return recs, err
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
