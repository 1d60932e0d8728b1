// Package journal keeps an append-only local record of payment
// discrepancies: cases where the provider captured funds but the commerce
// API could not be told about it. Entries are the operational follow-up
// queue for manual or scripted replay.
package journal

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
)

// Discrepancy is one provider-side success the upstream does not know about.
type Discrepancy struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	OrderID         string    `gorm:"index" json:"order_id"`
	SessionID       string    `json:"session_id,omitempty"`
	Method          string    `json:"method"`
	ProviderOrderID string    `json:"provider_order_id,omitempty"`
	TransactionID   string    `json:"transaction_id,omitempty"`
	Stage           string    `json:"stage"`
	Detail          string    `json:"detail"`
}

// Stages a discrepancy can be recorded at.
const (
	StageCaptureConfirm = "capture_confirm"
	StageReconcile      = "reconcile"
)

// Recorder is the write-side surface consumed by the checkout flow.
type Recorder interface {
	Record(ctx context.Context, d Discrepancy) error
}

// Reader is the read-side surface consumed by the admin routes.
type Reader interface {
	List(ctx context.Context, limit int) ([]Discrepancy, error)
	CountByOrder(ctx context.Context, orderID string) (int64, error)
}

// Journal wraps the sqlite-backed discrepancy table.
type Journal struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open connects the sqlite journal and migrates the schema.
func Open(cfg config.JournalConfig, logg *logger.Logger) (*Journal, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", cfg.Path, err)
	}
	return NewWithDB(db, logg)
}

// NewWithDB builds a Journal over an existing connection, migrating the
// schema. Used by Open and by tests running against in-memory sqlite.
func NewWithDB(db *gorm.DB, logg *logger.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := db.AutoMigrate(&Discrepancy{}); err != nil {
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}
	return &Journal{db: db, logger: logg}, nil
}

// Record appends a discrepancy. A write failure here is the worst case for
// follow-up, so the entry is also emitted to the log before returning.
func (j *Journal) Record(ctx context.Context, d Discrepancy) error {
	ctx = j.logger.WithOrderID(ctx, d.OrderID)
	j.logger.Error(ctx, fmt.Sprintf(
		"payment discrepancy at %s: method=%s provider_order=%s tx=%s detail=%s",
		d.Stage, d.Method, d.ProviderOrderID, d.TransactionID, d.Detail,
	), nil)
	if err := j.db.WithContext(ctx).Create(&d).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record discrepancy")
	}
	return nil
}

// List returns the most recent discrepancies, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Discrepancy, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []Discrepancy
	err := j.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list discrepancies")
	}
	return entries, nil
}

// CountByOrder reports how many entries exist for one order.
func (j *Journal) CountByOrder(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := j.db.WithContext(ctx).
		Model(&Discrepancy{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count discrepancies")
	}
	return count, nil
}
