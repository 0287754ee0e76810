package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Movement statuses. "processing" is transient: a crash mid-drain leaves rows
// in it, and the recovery sweep moves anything stale back to "pending".
// "completed" and "failed" are terminal and retained for audit.
const (
	MovementPending    = "pending"
	MovementProcessing = "processing"
	MovementCompleted  = "completed"
	MovementFailed     = "failed"
)

// Movement direction, matching Contifico's inventory movement types.
const (
	MovementEgreso  = "egreso"  // stock out (sale)
	MovementIngreso = "ingreso" // stock in (refund)
)

// Movement is one stock-affecting event originating in a store, queued for
// application to the ERP. Rows are never deleted.
type Movement struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderID      string          `gorm:"not null"`
	SKU          string          `gorm:"not null;index"`
	Quantity     decimal.Decimal `gorm:"type:decimal(14,4);not null"`
	MovementType string          `gorm:"type:varchar(10);not null"` // "egreso" | "ingreso"
	EventType    string          `gorm:"type:varchar(40);not null"` // source webhook topic
	Status       string          `gorm:"type:varchar(12);not null;default:'pending';index:idx_movements_drain,priority:1"`
	Attempts     int             `gorm:"not null;default:0"`
	MaxAttempts  int             `gorm:"not null;default:3"`
	LastAttemptAt *time.Time
	ErrorMessage  *string
	Metadata      datatypes.JSON
	CreatedAt     time.Time `gorm:"index:idx_movements_drain,priority:2"`
	ProcessedAt   *time.Time

	Store *Store `gorm:"foreignKey:StoreID"`
}

func (Movement) TableName() string { return "movements" }

// Terminal reports whether the movement can no longer be picked up by the
// drain loop without operator intervention.
func (m *Movement) Terminal() bool {
	return m.Status == MovementCompleted || m.Status == MovementFailed
}
