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

type IntegrationsHandler struct {
	svc     service.IntegrationService
	linkSvc service.LinkService
}

func NewIntegrationsHandler(svc service.IntegrationService, linkSvc service.LinkService) *IntegrationsHandler {
	return &IntegrationsHandler{svc: svc, linkSvc: linkSvc}
}

// Create godoc
// @Summary      Register an ERP integration
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreateIntegrationRequest true "Integration settings"
// @Success      201 {object} dto.IntegrationResponse
// @Failure      422 {object} apierror.ValidationError
// @Router       /api/integrations [post]
func (h *IntegrationsHandler) Create(c *gin.Context) {
	var req dto.CreateIntegrationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	integration, err := h.svc.Create(c.Request.Context(), middleware.TenantID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, toIntegrationResponse(integration))
}

// List godoc
// @Summary      List the tenant's integrations
// @Tags         integrations
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.IntegrationResponse
// @Router       /api/integrations [get]
func (h *IntegrationsHandler) List(c *gin.Context) {
	integrations, err := h.svc.List(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("could not list integrations"))
		return
	}
	out := make([]dto.IntegrationResponse, 0, len(integrations))
	for i := range integrations {
		out = append(out, toIntegrationResponse(&integrations[i]))
	}
	c.JSON(http.StatusOK, out)
}

// Get godoc
// @Summary      Get one integration
// @Tags         integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Integration UUID"
// @Success      200 {object} dto.IntegrationResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/integrations/{id} [get]
func (h *IntegrationsHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	integration, err := h.svc.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, toIntegrationResponse(integration))
}

// Update godoc
// @Summary      Update an integration
// @Description  Blank API key fields keep the stored value; keys are write-only.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path string                       true "Integration UUID"
// @Param        body body dto.UpdateIntegrationRequest true "Integration settings"
// @Success      200 {object} dto.IntegrationResponse
// @Router       /api/integrations/{id} [put]
func (h *IntegrationsHandler) Update(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req dto.UpdateIntegrationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	integration, err := h.svc.Update(c.Request.Context(), middleware.TenantID(c), id, req)
	switch {
	case errors.Is(err, service.ErrIntegrationNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case err != nil:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	default:
		c.JSON(http.StatusOK, toIntegrationResponse(integration))
	}
}

// Deactivate godoc
// @Summary      Deactivate an integration
// @Tags         integrations
// @Security     BearerAuth
// @Param        id path string true "Integration UUID"
// @Success      204
// @Router       /api/integrations/{id} [delete]
func (h *IntegrationsHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), middleware.TenantID(c), id); err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

// TestConnection godoc
// @Summary      Probe the ERP with the stored credentials
// @Tags         integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Integration UUID"
// @Success      200 {object} dto.TestConnectionResponse
// @Router       /api/integrations/{id}/test [post]
func (h *IntegrationsHandler) TestConnection(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	resp, err := h.svc.TestConnection(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Warehouses godoc
// @Summary      List the ERP's warehouses
// @Tags         integrations
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Integration UUID"
// @Success      200 {array} dto.WarehouseResponse
// @Router       /api/integrations/{id}/warehouses [get]
func (h *IntegrationsHandler) Warehouses(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	warehouses, err := h.svc.ListWarehouses(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, apierror.New(err.Error()))
		return
	}
	out := make([]dto.WarehouseResponse, 0, len(warehouses))
	for _, w := range warehouses {
		out = append(out, dto.WarehouseResponse{ID: w.ID, Name: w.Name})
	}
	c.JSON(http.StatusOK, out)
}

// GetLink godoc
// @Summary      Get a store/integration link
// @Tags         links
// @Produce      json
// @Security     BearerAuth
// @Param        storeId       path string true "Store UUID"
// @Param        integrationId path string true "Integration UUID"
// @Success      200 {object} dto.LinkResponse
// @Failure      404 {object} apierror.APIError
// @Router       /api/stores/{storeId}/integrations/{integrationId} [get]
func (h *IntegrationsHandler) GetLink(c *gin.Context) {
	storeID, integrationID, ok := pairParams(c)
	if !ok {
		return
	}
	link, err := h.linkSvc.Get(c.Request.Context(), middleware.TenantID(c), storeID, integrationID)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, toLinkResponse(link))
}

// UpsertLink godoc
// @Summary      Create or update a store/integration link
// @Tags         links
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        storeId       path string                true "Store UUID"
// @Param        integrationId path string                true "Integration UUID"
// @Param        body          body dto.UpsertLinkRequest true "Link config"
// @Success      200 {object} dto.LinkResponse
// @Router       /api/stores/{storeId}/integrations/{integrationId} [put]
func (h *IntegrationsHandler) UpsertLink(c *gin.Context) {
	storeID, integrationID, ok := pairParams(c)
	if !ok {
		return
	}
	var req dto.UpsertLinkRequest
	if !bindAndValidate(c, &req) {
		return
	}
	link, err := h.linkSvc.Upsert(c.Request.Context(), middleware.TenantID(c), storeID, integrationID, req)
	switch {
	case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrIntegrationNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case err != nil:
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	default:
		c.JSON(http.StatusOK, toLinkResponse(link))
	}
}

// DeleteLink godoc
// @Summary      Remove a store/integration link
// @Tags         links
// @Security     BearerAuth
// @Param        storeId       path string true "Store UUID"
// @Param        integrationId path string true "Integration UUID"
// @Success      204
// @Router       /api/stores/{storeId}/integrations/{integrationId} [delete]
func (h *IntegrationsHandler) DeleteLink(c *gin.Context) {
	storeID, integrationID, ok := pairParams(c)
	if !ok {
		return
	}
	if err := h.linkSvc.Delete(c.Request.Context(), middleware.TenantID(c), storeID, integrationID); err != nil {
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
		return
	}
	c.Status(http.StatusNoContent)
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid id"))
		return uuid.Nil, false
	}
	return id, true
}

func toIntegrationResponse(i *model.Integration) dto.IntegrationResponse {
	resp := dto.IntegrationResponse{
		ID:        i.ID.String(),
		Name:      i.Name,
		Type:      i.Type,
		IsActive:  i.IsActive,
		CreatedAt: i.CreatedAt.UTC().Format(time.RFC3339),
	}
	if i.Settings.Contifico != nil {
		resp.Env = i.Settings.Contifico.Env
		resp.WarehousePrimary = i.Settings.Contifico.WarehousePrimary
	}
	return resp
}

func toLinkResponse(l *model.StoreIntegrationLink) dto.LinkResponse {
	return dto.LinkResponse{
		ID:            l.ID.String(),
		StoreID:       l.StoreID.String(),
		IntegrationID: l.IntegrationID.String(),
		IsActive:      l.IsActive,
		SyncConfig: dto.SyncConfigRequest{
			Pull: dto.PullConfigRequest{
				Enabled:   l.SyncConfig.Pull.Enabled,
				Interval:  l.SyncConfig.Pull.Interval,
				Warehouse: l.SyncConfig.Pull.Warehouse,
			},
		},
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
	}
}
