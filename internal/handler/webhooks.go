package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"stocklink/internal/apierror"
	"stocklink/internal/dto"
	"stocklink/internal/model"
	"stocklink/internal/repository"
	"stocklink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// webhookDedupTTL bounds how long a delivery ID blocks redelivery of the
// same event. Platforms redeliver within hours, not days.
const webhookDedupTTL = 24 * time.Hour

// WebhooksHandler ingests order and refund webhooks from the storefront
// platforms. Unauthenticated route: each request is verified against the
// store's webhook secret instead, and deduplicated by delivery ID before
// anything is enqueued.
type WebhooksHandler struct {
	storeRepo   repository.StoreRepository
	movementSvc service.MovementService
	rdb         *redis.Client
}

func NewWebhooksHandler(storeRepo repository.StoreRepository, movementSvc service.MovementService, rdb *redis.Client) *WebhooksHandler {
	return &WebhooksHandler{storeRepo: storeRepo, movementSvc: movementSvc, rdb: rdb}
}

// Orders godoc
// @Summary      Ingest an order webhook
// @Description  Verifies the platform HMAC signature, deduplicates by delivery ID, and enqueues one egreso movement per SKU line.
// @Tags         webhooks
// @Accept       json
// @Param        storeId path string true "Store UUID"
// @Success      200
// @Failure      401 {object} apierror.APIError
// @Router       /webhooks/{storeId}/orders [post]
func (h *WebhooksHandler) Orders(c *gin.Context) {
	h.ingest(c, "order")
}

// Refunds godoc
// @Summary      Ingest a refund webhook
// @Description  Same pipeline as orders, but enqueues ingreso movements (stock returns to the ERP).
// @Tags         webhooks
// @Accept       json
// @Param        storeId path string true "Store UUID"
// @Success      200
// @Failure      401 {object} apierror.APIError
// @Router       /webhooks/{storeId}/refunds [post]
func (h *WebhooksHandler) Refunds(c *gin.Context) {
	h.ingest(c, "refund")
}

func (h *WebhooksHandler) ingest(c *gin.Context, eventType string) {
	storeID, ok := storeParam(c)
	if !ok {
		return
	}
	store, err := h.storeRepo.FindByID(c.Request.Context(), storeID)
	if err != nil || !store.IsActive {
		// 401, not 404: webhooks must not be a store-enumeration oracle
		c.JSON(http.StatusUnauthorized, apierror.New("unauthorized"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("could not read body"))
		return
	}

	if !verifySignature(store, c, body) {
		log.Warn().
			Str("store_id", store.ID.String()).
			Str("event_type", eventType).
			Msg("webhooks: signature verification failed")
		c.JSON(http.StatusUnauthorized, apierror.New("invalid signature"))
		return
	}

	event, err := parseEvent(store.Platform, eventType, c, body)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("unparseable payload: "+err.Error()))
		return
	}

	// First write wins; a redelivered event acks 200 without enqueueing.
	if event.EventID != "" {
		key := "webhook:seen:" + store.ID.String() + ":" + event.EventID
		fresh, err := h.rdb.SetNX(c.Request.Context(), key, 1, webhookDedupTTL).Result()
		if err != nil {
			log.Error().Err(err).Msg("webhooks: dedup check failed, processing anyway")
		} else if !fresh {
			log.Info().
				Str("store_id", store.ID.String()).
				Str("event_id", event.EventID).
				Msg("webhooks: duplicate delivery ignored")
			c.Status(http.StatusOK)
			return
		}
	}

	if _, err := h.movementSvc.EnqueueOrderEvent(c.Request.Context(), store, event); err != nil {
		// 500 makes the platform redeliver; dedup was already recorded, so
		// clear it to let the retry through.
		if event.EventID != "" {
			h.rdb.Del(c.Request.Context(), "webhook:seen:"+store.ID.String()+":"+event.EventID)
		}
		c.JSON(http.StatusInternalServerError, apierror.New("enqueue failed"))
		return
	}
	c.Status(http.StatusOK)
}

// verifySignature checks the platform-specific HMAC-SHA256 header against the
// raw request body using the store's webhook secret.
func verifySignature(store *model.Store, c *gin.Context, body []byte) bool {
	if store.WebhookSecret == "" {
		return false
	}
	var provided string
	switch store.Platform {
	case model.PlatformShopify:
		provided = c.GetHeader("X-Shopify-Hmac-Sha256")
	case model.PlatformWooCommerce:
		provided = c.GetHeader("X-WC-Webhook-Signature")
	default:
		return false
	}
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(store.WebhookSecret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

func parseEvent(platform, eventType string, c *gin.Context, body []byte) (dto.WebhookEvent, error) {
	switch platform {
	case model.PlatformShopify:
		return parseShopifyEvent(eventType, c.GetHeader("X-Shopify-Webhook-Id"), body)
	default:
		return parseWooEvent(eventType, c.GetHeader("X-WC-Webhook-Delivery-ID"), body)
	}
}

type shopifyLineItem struct {
	SKU      string `json:"sku"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
}

func parseShopifyEvent(eventType, deliveryID string, body []byte) (dto.WebhookEvent, error) {
	var payload struct {
		ID              json.Number       `json:"id"`
		OrderID         json.Number       `json:"order_id"` // set on refunds
		LineItems       []shopifyLineItem `json:"line_items"`
		RefundLineItems []struct {
			Quantity int             `json:"quantity"`
			LineItem shopifyLineItem `json:"line_item"`
		} `json:"refund_line_items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return dto.WebhookEvent{}, err
	}

	event := dto.WebhookEvent{
		EventID:   deliveryID,
		OrderID:   payload.ID.String(),
		EventType: eventType,
	}
	if eventType == "refund" {
		if payload.OrderID.String() != "" {
			event.OrderID = payload.OrderID.String()
		}
		for _, r := range payload.RefundLineItems {
			event.Lines = append(event.Lines, dto.OrderLine{
				SKU:      r.LineItem.SKU,
				Name:     r.LineItem.Title,
				Quantity: decimal.NewFromInt(int64(r.Quantity)),
			})
		}
		return event, nil
	}
	for _, li := range payload.LineItems {
		event.Lines = append(event.Lines, dto.OrderLine{
			SKU:      li.SKU,
			Name:     li.Title,
			Quantity: decimal.NewFromInt(int64(li.Quantity)),
		})
	}
	return event, nil
}

func parseWooEvent(eventType, deliveryID string, body []byte) (dto.WebhookEvent, error) {
	var payload struct {
		ID        json.Number `json:"id"`
		LineItems []struct {
			SKU      string      `json:"sku"`
			Name     string      `json:"name"`
			Quantity json.Number `json:"quantity"`
		} `json:"line_items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return dto.WebhookEvent{}, err
	}

	event := dto.WebhookEvent{
		EventID:   deliveryID,
		OrderID:   payload.ID.String(),
		EventType: eventType,
	}
	for _, li := range payload.LineItems {
		qty, err := decimal.NewFromString(li.Quantity.String())
		if err != nil {
			qty = decimal.Zero
		}
		// Woo refund payloads carry negative quantities
		event.Lines = append(event.Lines, dto.OrderLine{
			SKU:      li.SKU,
			Name:     li.Name,
			Quantity: qty.Abs(),
		})
	}
	return event, nil
}
