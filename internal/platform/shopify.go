package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	shopifyAPIVersion = "2024-01"
	shopifyPageSize   = 250
)

// ShopifyClient wraps the Shopify Admin REST API for one store.
// Stock reads and writes go through product variants; the client resolves
// SKU → variant on demand and caches nothing. Product listings follow the
// Link-header cursor, so catalogs larger than one page stay visible.
type ShopifyClient struct {
	domain      string // e.g. "acme.myshopify.com"
	accessToken string
	httpClient  *http.Client
}

func NewShopifyClient(domain, accessToken string) *ShopifyClient {
	return &ShopifyClient{
		domain:      domain,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type shopifyVariant struct {
	ID                int64  `json:"id"`
	SKU               string `json:"sku"`
	Title             string `json:"title"`
	InventoryQuantity int    `json:"inventory_quantity"`
	InventoryItemID   int64  `json:"inventory_item_id"`
}

type shopifyProduct struct {
	Title    string           `json:"title"`
	Variants []shopifyVariant `json:"variants"`
}

// request performs one API call and returns the response headers so paged
// GETs can read the Link cursor.
func (c *ShopifyClient) request(ctx context.Context, method, path string, body []byte, dest interface{}) (http.Header, error) {
	u := fmt.Sprintf("https://%s/admin/api/%s%s", c.domain, shopifyAPIVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("shopify: create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrSKUNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("shopify: bad credentials: %w", ErrUnavailable)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("shopify: rate limited (429)")
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("shopify: server error (%d): %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("shopify: unexpected status %d", resp.StatusCode)
	}
	if dest == nil {
		return resp.Header, nil
	}
	return resp.Header, json.NewDecoder(resp.Body).Decode(dest)
}

func (c *ShopifyClient) do(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	_, err := c.request(ctx, method, path, body, dest)
	return err
}

// productsPage fetches one page of the product listing and returns the
// page_info cursor of the next page, or "" on the last one.
func (c *ShopifyClient) productsPage(ctx context.Context, pageInfo string) ([]shopifyProduct, string, error) {
	q := url.Values{"limit": {fmt.Sprint(shopifyPageSize)}}
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	}
	var result struct {
		Products []shopifyProduct `json:"products"`
	}
	header, err := c.request(ctx, http.MethodGet, "/products.json?"+q.Encode(), nil, &result)
	if err != nil {
		return nil, "", err
	}
	return result.Products, nextPageInfo(header.Get("Link")), nil
}

// nextPageInfo extracts the page_info cursor of the rel="next" entry from a
// Shopify Link header.
func nextPageInfo(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < start {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(part[start+1 : end]))
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}

func (c *ShopifyClient) findVariant(ctx context.Context, sku string) (*shopifyVariant, error) {
	// The Admin REST API has no direct SKU filter on variants; the documented
	// workaround is scanning the paged product listing.
	for pageInfo := ""; ; {
		products, next, err := c.productsPage(ctx, pageInfo)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			for _, v := range p.Variants {
				if v.SKU == sku {
					return &v, nil
				}
			}
		}
		if next == "" {
			return nil, ErrSKUNotFound
		}
		pageInfo = next
	}
}

func (c *ShopifyClient) GetProductStock(ctx context.Context, sku string) (decimal.Decimal, error) {
	v, err := c.findVariant(ctx, sku)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(v.InventoryQuantity)), nil
}

func (c *ShopifyClient) SetProductStock(ctx context.Context, sku string, quantity decimal.Decimal) error {
	v, err := c.findVariant(ctx, sku)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]interface{}{
		"variant": map[string]interface{}{
			"id":                 v.ID,
			"inventory_quantity": quantity.IntPart(),
		},
	})
	if err != nil {
		return fmt.Errorf("shopify: marshal variant: %w", err)
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/variants/%d.json", v.ID), body, nil)
}

func (c *ShopifyClient) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	for pageInfo := ""; ; {
		products, next, err := c.productsPage(ctx, pageInfo)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			for _, v := range p.Variants {
				if v.SKU == "" {
					continue // products without a SKU cannot be mapped to the ERP
				}
				name := p.Title
				if v.Title != "" && v.Title != "Default Title" {
					name = p.Title + " - " + v.Title
				}
				out = append(out, Product{
					SKU:   v.SKU,
					Name:  name,
					Stock: decimal.NewFromInt(int64(v.InventoryQuantity)),
				})
			}
		}
		if next == "" {
			return out, nil
		}
		pageInfo = next
	}
}
