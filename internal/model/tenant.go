package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is the account that owns stores and integrations. Everything the
// sync core touches is scoped by TenantID.
type Tenant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
