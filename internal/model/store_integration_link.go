package model

import (
	"time"

	"github.com/google/uuid"
)

// PullConfig controls the scheduled pull for one link. Interval uses cron
// syntax ("@every 15m", "0 */2 * * *"); empty falls back to the global
// default. Warehouse overrides the integration's primary warehouse.
type PullConfig struct {
	Enabled   bool   `json:"enabled"`
	Interval  string `json:"interval,omitempty"`
	Warehouse string `json:"warehouse,omitempty"`
}

type SyncConfig struct {
	Pull PullConfig `json:"pull"`
}

// StoreIntegrationLink binds a store to an integration. At most one link per
// (store, integration) pair - enforced by the composite unique index.
type StoreIntegrationLink struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_store_integration"`
	IntegrationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_store_integration"`
	IsActive      bool       `gorm:"not null;default:true"`
	SyncConfig    SyncConfig `gorm:"serializer:json"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Store       *Store       `gorm:"foreignKey:StoreID"`
	Integration *Integration `gorm:"foreignKey:IntegrationID"`
}

func (StoreIntegrationLink) TableName() string { return "store_integration_links" }
