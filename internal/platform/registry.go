package platform

import (
	"bytes"
	"fmt"
	"io"

	"stocklink/internal/model"
)

// ERPFactory and StoreFactory let services and workers build clients from
// persisted records. Tests substitute recording fakes.
type (
	ERPFactory   func(integration *model.Integration) (ERPClient, error)
	StoreFactory func(store *model.Store) (StoreClient, error)
)

// NewERPFactory returns the production ERP factory. baseURL comes from config
// so tests and the Contifico sandbox can point elsewhere.
func NewERPFactory(baseURL string) ERPFactory {
	return func(integration *model.Integration) (ERPClient, error) {
		switch integration.Type {
		case model.IntegrationContifico:
			s := integration.Settings.Contifico
			if s == nil {
				return nil, fmt.Errorf("integration %s has no contifico settings", integration.ID)
			}
			return NewContificoClient(baseURL, s.ActiveAPIKey()), nil
		default:
			return nil, fmt.Errorf("unsupported integration type %q", integration.Type)
		}
	}
}

// NewStoreClient builds the right storefront client for a store record.
func NewStoreClient(store *model.Store) (StoreClient, error) {
	switch store.Platform {
	case model.PlatformShopify:
		return NewShopifyClient(store.Domain, store.APIKey), nil
	case model.PlatformWooCommerce:
		return NewWooCommerceClient(store.Domain, store.APIKey, store.APISecret), nil
	default:
		return nil, fmt.Errorf("unsupported store platform %q", store.Platform)
	}
}

func jsonReader(b []byte) io.Reader { return bytes.NewReader(b) }
