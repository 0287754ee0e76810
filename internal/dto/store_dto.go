package dto

import "github.com/shopspring/decimal"

type StoreResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"is_active"`
}

type UnmappedSkuResponse struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	ProductName string `json:"product_name"`
	Occurrences int    `json:"occurrences"`
	Resolved    bool   `json:"resolved"`
	CreatedAt   string `json:"created_at"`
}

type ResolveUnmappedRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// OrderLine is one SKU affected by an order or refund webhook.
type OrderLine struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

// WebhookEvent is the normalized form of a store webhook after platform-specific
// parsing. EventID is the platform's delivery/event identifier used for dedup.
type WebhookEvent struct {
	EventID   string
	OrderID   string
	EventType string
	Lines     []OrderLine
}
