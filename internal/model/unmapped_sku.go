package model

import (
	"time"

	"github.com/google/uuid"
)

// UnmappedSku records a store SKU that has no counterpart in the ERP.
// Repeat misses increment Occurrences on the same row; rows are never
// auto-deleted - an operator fixes the mapping and marks it resolved.
type UnmappedSku struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_unmapped_store_sku"`
	SKU         string    `gorm:"not null;uniqueIndex:idx_unmapped_store_sku"`
	ProductName string
	Occurrences int  `gorm:"not null;default:1"`
	Resolved    bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (UnmappedSku) TableName() string { return "unmapped_skus" }
