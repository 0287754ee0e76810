package handler

import (
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

type StoresHandler struct{ svc service.StoreService }

func NewStoresHandler(svc service.StoreService) *StoresHandler {
	return &StoresHandler{svc: svc}
}

// List godoc
// @Summary      List the tenant's stores
// @Tags         stores
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.StoreResponse
// @Router       /api/stores [get]
func (h *StoresHandler) List(c *gin.Context) {
	stores, err := h.svc.List(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("could not list stores"))
		return
	}
	out := make([]dto.StoreResponse, 0, len(stores))
	for i := range stores {
		out = append(out, toStoreResponse(&stores[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get godoc
// @Summary      Get one store
// @Tags         stores
// @Produce      json
// @Security     BearerAuth
// @Param        storeId path string true "Store UUID"
// @Success      200 {object} dto.StoreResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/stores/{storeId} [get]
func (h *StoresHandler) Get(c *gin.Context) {
	storeID, ok := storeParam(c)
	if !ok {
		return
	}
	store, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), storeID)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, toStoreResponse(store))
}

// ListUnmapped godoc
// @Summary      List SKUs the ERP does not know
// @Description  SKUs seen in pulls or movements that have no ERP record, ordered by how often they were hit.
// @Tags         stores
// @Produce      json
// @Security     BearerAuth
// @Param        storeId          path  string true  "Store UUID"
// @Param        include_resolved query bool   false "Also return resolved rows"
// @Success      200 {array} dto.UnmappedSkuResponse
// @Router       /api/stores/{storeId}/unmapped-skus [get]
func (h *StoresHandler) ListUnmapped(c *gin.Context) {
	storeID, ok := storeParam(c)
	if !ok {
		return
	}
	includeResolved := c.Query("include_resolved") == "true"

	rows, err := h.svc.ListUnmapped(c.Request.Context(), middleware.TenantID(c), storeID, includeResolved)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	out := make([]dto.UnmappedSkuResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.UnmappedSkuResponse{
			ID:          r.ID.String(),
			SKU:         r.SKU,
			ProductName: r.ProductName,
			Occurrences: r.Occurrences,
			Resolved:    r.Resolved,
			CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}

// ResolveUnmapped godoc
// @Summary      Mark unmapped SKUs as resolved
// @Tags         stores
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        storeId path string                     true "Store UUID"
// @Param        body    body dto.ResolveUnmappedRequest true "Row IDs to resolve"
// @Success      200 {object} map[string]int64
// @Router       /api/stores/{storeId}/unmapped-skus/resolve [post]
func (h *StoresHandler) ResolveUnmapped(c *gin.Context) {
	storeID, ok := storeParam(c)
	if !ok {
		return
	}
	var req dto.ResolveUnmappedRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid id: "+raw))
			return
		}
		ids = append(ids, id)
	}

	n, err := h.svc.ResolveUnmapped(c.Request.Context(), middleware.TenantID(c), storeID, ids)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": n})
}

func storeParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("storeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid store id"))
		return uuid.Nil, false
	}
	return id, true
}

func toStoreResponse(s *model.Store) dto.StoreResponse {
	return dto.StoreResponse{
		ID:       s.ID.String(),
		Name:     s.Name,
		Platform: s.Platform,
		Domain:   s.Domain,
		IsActive: s.IsActive,
	}
}
