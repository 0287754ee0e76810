package handler

import (
	"errors"
	"net/http"
	"time"

	"stocklink/internal/apierror"
	"stocklink/internal/dto"
	"stocklink/internal/middleware"
	"stocklink/internal/model"
	"stocklink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MovementsHandler struct{ svc service.MovementService }

func NewMovementsHandler(svc service.MovementService) *MovementsHandler {
	return &MovementsHandler{svc: svc}
}

// List godoc
// @Summary      List queued stock movements
// @Tags         movements
// @Produce      json
// @Security     BearerAuth
// @Param        store_id query string false "Filter by store UUID"
// @Param        status   query string false "pending | processing | completed | failed"
// @Param        page     query int    false "Page (default 1)"
// @Param        limit    query int    false "Items per page (default 100)"
// @Success      200 {object} dto.MovementListResponse
// @Router       /api/movements [get]
func (h *MovementsHandler) List(c *gin.Context) {
	filter := dto.MovementFilter{
		Status: c.Query("status"),
		Page:   intQuery(c, "page", 1),
		Limit:  intQuery(c, "limit", 100),
	}
	if raw := c.Query("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid store_id"))
			return
		}
		filter.StoreID = &id
	}

	movements, total, err := h.svc.List(c.Request.Context(), middleware.TenantID(c), filter)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}

	data := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		data = append(data, toMovementResponse(&movements[i]))
	}
	c.JSON(http.StatusOK, dto.MovementListResponse{
		Data:       data,
		Pagination: dto.Pagination{Page: filter.Page, Limit: filter.Limit, Total: total},
	})
}

// Get godoc
// @Summary      Get one movement
// @Tags         movements
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Movement UUID"
// @Success      200 {object} dto.MovementResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/movements/{id} [get]
func (h *MovementsHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid movement id"))
		return
	}
	m, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, toMovementResponse(m))
}

// Retry godoc
// @Summary      Re-queue a failed movement
// @Description  Resets a terminally failed movement to pending with a fresh attempt budget.
// @Tags         movements
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Movement UUID"
// @Success      200 {object} dto.MovementResponse
// @Failure      409 {object} apierror.APIError
// @Router       /api/movements/{id}/retry [post]
func (h *MovementsHandler) Retry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid movement id"))
		return
	}
	m, err := h.svc.Retry(c.Request.Context(), middleware.TenantID(c), id)
	switch {
	case errors.Is(err, service.ErrMovementNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, service.ErrMovementNotFailed):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case err != nil:
		c.JSON(http.StatusInternalServerError, apierror.New("retry failed"))
	default:
		c.JSON(http.StatusOK, toMovementResponse(m))
	}
}

func toMovementResponse(m *model.Movement) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:           m.ID.String(),
		StoreID:      m.StoreID.String(),
		OrderID:      m.OrderID,
		SKU:          m.SKU,
		Quantity:     m.Quantity,
		MovementType: m.MovementType,
		EventType:    m.EventType,
		Status:       m.Status,
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.LastAttemptAt != nil {
		ts := m.LastAttemptAt.UTC().Format(time.RFC3339)
		resp.LastAttemptAt = &ts
	}
	if m.ProcessedAt != nil {
		ts := m.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &ts
	}
	return resp
}
