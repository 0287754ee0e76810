// Package platform holds the capability interfaces the sync engines consume
// and the thin HTTP clients implementing them for Contifico, Shopify and
// WooCommerce. The engines never depend on a concrete client.
package platform

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSKUNotFound distinguishes a structurally-missing SKU mapping from a
// transient failure: the former is never retried, the latter is.
var ErrSKUNotFound = errors.New("sku not found")

// ErrUnavailable marks connectivity-level failures (endpoint down, bad
// credentials, 5xx). Callers treat it as an integration-level error and
// abort the whole batch instead of recording per-SKU outcomes.
var ErrUnavailable = errors.New("integration unavailable")

type Warehouse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	SKU   string
	Name  string
	Stock decimal.Decimal
}

// MovementRequest is an inventory movement applied to the ERP.
type MovementRequest struct {
	SKU       string
	Quantity  decimal.Decimal
	Type      string // "egreso" | "ingreso"
	Warehouse string // empty = primary
	Reference string // originating order, for the ERP audit trail
}

// ERPClient is the capability interface over the ERP (Contifico).
type ERPClient interface {
	// GetStock returns the available quantity for a SKU, scoped to a warehouse
	// when one is given ("" = all warehouses summed). Returns ErrSKUNotFound
	// when the SKU has no ERP record.
	GetStock(ctx context.Context, sku, warehouse string) (decimal.Decimal, error)
	// ApplyMovement posts an inventory movement (egreso/ingreso).
	ApplyMovement(ctx context.Context, req MovementRequest) error
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	TestConnection(ctx context.Context) error
}

// StoreClient is the capability interface over a storefront platform.
type StoreClient interface {
	GetProductStock(ctx context.Context, sku string) (decimal.Decimal, error)
	SetProductStock(ctx context.Context, sku string, quantity decimal.Decimal) error
	ListProducts(ctx context.Context) ([]Product, error)
}
