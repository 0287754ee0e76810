package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementResponse is the API view of one queued stock movement.
type MovementResponse struct {
	ID           string          `json:"id"`
	StoreID      string          `json:"store_id"`
	OrderID      string          `json:"order_id"`
	SKU          string          `json:"sku"`
	Quantity     decimal.Decimal `json:"quantity"`
	MovementType string          `json:"movement_type"`
	EventType    string          `json:"event_type"`
	Status       string          `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	LastAttemptAt *string        `json:"last_attempt_at"`
	ErrorMessage  *string        `json:"error_message"`
	CreatedAt     string         `json:"created_at"`
	ProcessedAt   *string        `json:"processed_at"`
}

// MovementFilter narrows the movement listing. TenantID is set by the
// service from the caller's claims, never from request input.
type MovementFilter struct {
	TenantID uuid.UUID
	StoreID  *uuid.UUID
	Status   string
	Page     int
	Limit    int
}

type MovementListResponse struct {
	Data       []MovementResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}
