package model

import (
	"time"

	"github.com/google/uuid"
)

// Store platforms supported by the platform client registry.
const (
	PlatformShopify     = "shopify"
	PlatformWooCommerce = "woocommerce"
)

// Store is a connected storefront. Credential fields map onto whatever the
// platform needs: Shopify uses APIKey as the Admin API access token,
// WooCommerce uses APIKey/APISecret as consumer key/secret.
type Store struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"not null"`
	Platform string    `gorm:"type:varchar(20);not null"` // "shopify" | "woocommerce"
	// Domain is the base host of the store, e.g. "acme.myshopify.com".
	Domain        string `gorm:"not null"`
	APIKey        string `gorm:"not null"`
	APISecret     string
	WebhookSecret string
	IsActive      bool `gorm:"not null;default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Tenant *Tenant `gorm:"foreignKey:TenantID"`
}
