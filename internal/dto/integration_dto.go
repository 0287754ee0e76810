package dto

// ContificoSettingsRequest mirrors model.ContificoSettings with validation tags
// applied at the API boundary.
type ContificoSettingsRequest struct {
	Env              string `json:"env" validate:"required,oneof=test prod"`
	APIKeyTest       string `json:"api_key_test"`
	APIKeyProd       string `json:"api_key_prod"`
	WarehousePrimary string `json:"warehouse_primary"`
}

type CreateIntegrationRequest struct {
	Name      string                    `json:"name" validate:"required,min=1,max=120"`
	Type      string                    `json:"type" validate:"required,oneof=contifico"`
	Contifico *ContificoSettingsRequest `json:"contifico" validate:"required"`
}

type UpdateIntegrationRequest struct {
	Name      string                    `json:"name" validate:"required,min=1,max=120"`
	IsActive  *bool                     `json:"is_active"`
	Contifico *ContificoSettingsRequest `json:"contifico" validate:"required"`
}

// IntegrationResponse never echoes API keys back to the client.
type IntegrationResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Env              string `json:"env"`
	WarehousePrimary string `json:"warehouse_primary,omitempty"`
	IsActive         bool   `json:"is_active"`
	CreatedAt        string `json:"created_at"`
}

type WarehouseResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
}

// PullConfigRequest is the validated shape of syncConfig.pull on a link.
type PullConfigRequest struct {
	Enabled   bool   `json:"enabled"`
	Interval  string `json:"interval" validate:"omitempty,max=60"`
	Warehouse string `json:"warehouse" validate:"omitempty,max=60"`
}

type SyncConfigRequest struct {
	Pull PullConfigRequest `json:"pull"`
}

type UpsertLinkRequest struct {
	IsActive   *bool             `json:"is_active"`
	SyncConfig SyncConfigRequest `json:"sync_config"`
}

type LinkResponse struct {
	ID            string            `json:"id"`
	StoreID       string            `json:"store_id"`
	IntegrationID string            `json:"integration_id"`
	IsActive      bool              `json:"is_active"`
	SyncConfig    SyncConfigRequest `json:"sync_config"`
	CreatedAt     string            `json:"created_at"`
}
