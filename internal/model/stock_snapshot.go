package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot outcomes.
const (
	SnapshotSuccess = "success"
	SnapshotFailed  = "failed"
)

// StockSnapshot is the last-known reconciliation state for one (store, sku):
// the ERP quantity seen on the most recent pull or movement touching the SKU,
// the store quantity at that moment, and how that operation ended. It backs
// the sync-status projection; it is not a ledger and is freely overwritten.
type StockSnapshot struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_store_sku"`
	SKU           string          `gorm:"not null;uniqueIndex:idx_snapshot_store_sku"`
	ERPQuantity   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	StoreQuantity decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	LastResult    string          `gorm:"type:varchar(10);not null"` // "success" | "failed"
	LastError     *string
	LastSyncAt    time.Time `gorm:"not null"`
}

func (StockSnapshot) TableName() string { return "stock_snapshots" }
