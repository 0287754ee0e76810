package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// WooCommerceClient wraps the WooCommerce REST API (wc/v3) for one store.
// Auth is HTTP basic with the consumer key/secret pair.
type WooCommerceClient struct {
	domain         string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
}

func NewWooCommerceClient(domain, consumerKey, consumerSecret string) *WooCommerceClient {
	return &WooCommerceClient{
		domain:         domain,
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
	}
}

type wooProduct struct {
	ID            int64  `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	StockQuantity *int   `json:"stock_quantity"`
}

func (c *WooCommerceClient) do(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	u := fmt.Sprintf("https://%s/wp-json/wc/v3%s", c.domain, path)
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("woocommerce: create request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("woocommerce: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrSKUNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("woocommerce: bad credentials: %w", ErrUnavailable)
	case resp.StatusCode >= 500:
		return fmt.Errorf("woocommerce: server error (%d): %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("woocommerce: unexpected status %d", resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *WooCommerceClient) findProduct(ctx context.Context, sku string) (*wooProduct, error) {
	q := url.Values{"sku": {sku}}
	var products []wooProduct
	if err := c.do(ctx, http.MethodGet, "/products?"+q.Encode(), nil, &products); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrSKUNotFound
	}
	return &products[0], nil
}

func (c *WooCommerceClient) GetProductStock(ctx context.Context, sku string) (decimal.Decimal, error) {
	p, err := c.findProduct(ctx, sku)
	if err != nil {
		return decimal.Zero, err
	}
	if p.StockQuantity == nil {
		// Stock management disabled for this product; treat as zero.
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(int64(*p.StockQuantity)), nil
}

func (c *WooCommerceClient) SetProductStock(ctx context.Context, sku string, quantity decimal.Decimal) error {
	p, err := c.findProduct(ctx, sku)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]interface{}{
		"manage_stock":   true,
		"stock_quantity": quantity.IntPart(),
	})
	if err != nil {
		return fmt.Errorf("woocommerce: marshal update: %w", err)
	}
	return c.do(ctx, http.MethodPut, "/products/"+strconv.FormatInt(p.ID, 10), body, nil)
}

func (c *WooCommerceClient) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	for page := 1; ; page++ {
		q := url.Values{"per_page": {"100"}, "page": {strconv.Itoa(page)}}
		var products []wooProduct
		if err := c.do(ctx, http.MethodGet, "/products?"+q.Encode(), nil, &products); err != nil {
			return nil, err
		}
		if len(products) == 0 {
			break
		}
		for _, p := range products {
			if p.SKU == "" {
				continue
			}
			stock := decimal.Zero
			if p.StockQuantity != nil {
				stock = decimal.NewFromInt(int64(*p.StockQuantity))
			}
			out = append(out, Product{SKU: p.SKU, Name: p.Name, Stock: stock})
		}
		if len(products) < 100 {
			break
		}
	}
	return out, nil
}
