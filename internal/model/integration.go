package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const IntegrationContifico = "contifico"

// ContificoSettings configures the Contifico ERP connection for one tenant.
// One API key per environment; the active environment selects which key is
// used. An empty WarehousePrimary means global stock (all warehouses summed).
type ContificoSettings struct {
	Env              string  `json:"env" validate:"required,oneof=test prod"`
	APIKeys          APIKeys `json:"api_keys"`
	WarehousePrimary string  `json:"warehouse_primary,omitempty"`
}

type APIKeys struct {
	Test string `json:"test"`
	Prod string `json:"prod"`
}

// ActiveAPIKey returns the key for the configured environment.
func (s ContificoSettings) ActiveAPIKey() string {
	if s.Env == "prod" {
		return s.APIKeys.Prod
	}
	return s.APIKeys.Test
}

// IntegrationSettings is a tagged union keyed by Integration.Type. Exactly one
// member must be set and it must match the type; Validate enforces this at the
// API boundary so the engines never probe loosely-typed blobs.
type IntegrationSettings struct {
	Contifico *ContificoSettings `json:"contifico,omitempty"`
}

var (
	ErrSettingsMismatch = errors.New("settings do not match integration type")
	ErrMissingAPIKey    = errors.New("no API key configured for the active environment")
)

func (s IntegrationSettings) Validate(integrationType string) error {
	switch integrationType {
	case IntegrationContifico:
		if s.Contifico == nil {
			return ErrSettingsMismatch
		}
		if s.Contifico.ActiveAPIKey() == "" {
			return ErrMissingAPIKey
		}
		return nil
	default:
		return errors.New("unsupported integration type: " + integrationType)
	}
}

// Integration holds per-tenant ERP credentials and defaults. Settings are
// stored as JSONB and deserialized into the typed union above.
type Integration struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	Name      string              `gorm:"not null"`
	Type      string              `gorm:"type:varchar(20);not null"` // "contifico"
	Settings  IntegrationSettings `gorm:"serializer:json"`
	IsActive  bool                `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Tenant *Tenant `gorm:"foreignKey:TenantID"`
}
