package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ContificoClient is a thin HTTP wrapper over the Contifico REST API.
// Authentication is a per-environment API key sent in the Authorization header.
type ContificoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewContificoClient(baseURL, apiKey string) *ContificoClient {
	return &ContificoClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type contificoProduct struct {
	ID       string `json:"id"`
	Codigo   string `json:"codigo"`
	Nombre   string `json:"nombre"`
	Cantidad string `json:"cantidad_stock"`
}

type contificoWarehouse struct {
	ID     string `json:"id"`
	Nombre string `json:"nombre"`
}

type contificoStockEntry struct {
	BodegaID string `json:"bodega_id"`
	Cantidad string `json:"cantidad"`
}

func (c *ContificoClient) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("contifico: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contifico: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrSKUNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("contifico: bad credentials (%d): %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 500:
		return fmt.Errorf("contifico: server error (%d): %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("contifico: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// GetStock looks the product up by its code. Warehouse scoping queries the
// per-warehouse stock endpoint; without a warehouse the catalog quantity
// (all warehouses summed) is returned.
func (c *ContificoClient) GetStock(ctx context.Context, sku, warehouse string) (decimal.Decimal, error) {
	q := url.Values{"codigo": {sku}}
	var products []contificoProduct
	if err := c.get(ctx, "/producto/", q, &products); err != nil {
		return decimal.Zero, err
	}
	if len(products) == 0 {
		return decimal.Zero, ErrSKUNotFound
	}
	p := products[0]

	if warehouse == "" {
		qty, err := decimal.NewFromString(p.Cantidad)
		if err != nil {
			return decimal.Zero, fmt.Errorf("contifico: parse stock %q for %s: %w", p.Cantidad, sku, err)
		}
		return qty, nil
	}

	var entries []contificoStockEntry
	if err := c.get(ctx, "/producto/"+p.ID+"/stock/", nil, &entries); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range entries {
		if e.BodegaID != warehouse {
			continue
		}
		qty, err := decimal.NewFromString(e.Cantidad)
		if err != nil {
			return decimal.Zero, fmt.Errorf("contifico: parse stock %q for %s: %w", e.Cantidad, sku, err)
		}
		total = total.Add(qty)
	}
	return total, nil
}

// ApplyMovement posts an inventory movement. Contifico rejects movements for
// unknown product codes with 404, which maps to ErrSKUNotFound so the queue
// can fail the movement terminally instead of retrying.
func (c *ContificoClient) ApplyMovement(ctx context.Context, reqBody MovementRequest) error {
	payload := map[string]interface{}{
		"tipo":        reqBody.Type,
		"descripcion": "StockLink " + reqBody.Reference,
		"detalles": []map[string]interface{}{
			{"producto_codigo": reqBody.SKU, "cantidad": reqBody.Quantity.String()},
		},
	}
	if reqBody.Warehouse != "" {
		payload["bodega_id"] = reqBody.Warehouse
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("contifico: marshal movement: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/movimiento-inventario/", jsonReader(body))
	if err != nil {
		return fmt.Errorf("contifico: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("contifico: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrSKUNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("contifico: server error (%d): %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		return fmt.Errorf("contifico: movement rejected (%d)", resp.StatusCode)
	}
	return nil
}

func (c *ContificoClient) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	var bodegas []contificoWarehouse
	if err := c.get(ctx, "/bodega/", nil, &bodegas); err != nil {
		return nil, err
	}
	out := make([]Warehouse, 0, len(bodegas))
	for _, b := range bodegas {
		out = append(out, Warehouse{ID: b.ID, Name: b.Nombre})
	}
	return out, nil
}

// TestConnection validates credentials with the cheapest authenticated call.
func (c *ContificoClient) TestConnection(ctx context.Context) error {
	_, err := c.ListWarehouses(ctx)
	return err
}
