package handler

import (
	"errors"
	"net/http"
	"strconv"

	"stocklink/internal/apierror"
	"stocklink/internal/dto"
	"stocklink/internal/middleware"
	"stocklink/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SyncHandler struct {
	pullSvc   service.PullService
	statusSvc service.StatusService
}

func NewSyncHandler(pullSvc service.PullService, statusSvc service.StatusService) *SyncHandler {
	return &SyncHandler{pullSvc: pullSvc, statusSvc: statusSvc}
}

// Pull godoc
// @Summary      Trigger a manual pull
// @Description  Brings store stock in line with ERP stock for one store/integration pair. Supports dry-run and a per-run SKU limit.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        storeId        path  string           true  "Store UUID"
// @Param        integrationId  path  string           true  "Integration UUID"
// @Param        body           body  dto.PullRequest  false "Pull options"
// @Success      200  {object} dto.PullResponse
// @Failure      409  {object} apierror.APIError
// @Router       /api/sync/pull/{storeId}/{integrationId} [post]
func (h *SyncHandler) Pull(c *gin.Context) {
	storeID, integrationID, ok := pairParams(c)
	if !ok {
		return
	}
	var req dto.PullRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	h.runPull(c, storeID, integrationID, service.PullOptions{
		DryRun: req.DryRun,
		Limit:  req.Limit,
	})
}

// PullSelective godoc
// @Summary      Pull an explicit list of SKUs
// @Tags         sync
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        storeId        path  string                    true "Store UUID"
// @Param        integrationId  path  string                    true "Integration UUID"
// @Param        body           body  dto.SelectivePullRequest  true "SKU allow-list"
// @Success      200  {object} dto.PullResponse
// @Failure      409  {object} apierror.APIError
// @Router       /api/sync/pull-selective/{storeId}/{integrationId} [post]
func (h *SyncHandler) PullSelective(c *gin.Context) {
	storeID, integrationID, ok := pairParams(c)
	if !ok {
		return
	}
	var req dto.SelectivePullRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.runPull(c, storeID, integrationID, service.PullOptions{
		DryRun: req.DryRun,
		SKUs:   req.SKUs,
	})
}

func (h *SyncHandler) runPull(c *gin.Context, storeID, integrationID uuid.UUID, opts service.PullOptions) {
	result, err := h.pullSvc.Pull(c.Request.Context(), middleware.TenantID(c), storeID, integrationID, opts)
	switch {
	case errors.Is(err, service.ErrPullInProgress):
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
	case errors.Is(err, service.ErrLinkNotActive):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	case errors.Is(err, service.ErrIntegrationDown):
		// may carry the partial result processed before the abort
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error(), "result": result})
	case err != nil:
		c.JSON(http.StatusInternalServerError, apierror.New("pull failed"))
	default:
		c.JSON(http.StatusOK, dto.PullResponse{Result: result})
	}
}

// SyncStatus godoc
// @Summary      Per-product sync status projection
// @Tags         sync
// @Produce      json
// @Security     BearerAuth
// @Param        storeId path  string true  "Store UUID"
// @Param        status  query string false "pending | synced | different | not_in_contifico | error"
// @Param        search  query string false "Substring match on SKU or name"
// @Param        page    query int    false "Page (default 1)"
// @Param        limit   query int    false "Items per page (default 50)"
// @Success      200 {object} dto.SyncStatusResponse
// @Router       /api/stores/{storeId}/products/sync-status [get]
func (h *SyncHandler) SyncStatus(c *gin.Context) {
	storeID, err := uuid.Parse(c.Param("storeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid store id"))
		return
	}

	q := dto.SyncStatusQuery{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	q.Page = intQuery(c, "page", 1)
	q.Limit = intQuery(c, "limit", 50)

	resp, err := h.statusSvc.GetSyncStatus(c.Request.Context(), middleware.TenantID(c), storeID, q)
	if err != nil {
		c.JSON(http.StatusBadGateway, apierror.New("could not compute sync status: "+err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func pairParams(c *gin.Context) (storeID, integrationID uuid.UUID, ok bool) {
	storeID, err := uuid.Parse(c.Param("storeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid store id"))
		return uuid.Nil, uuid.Nil, false
	}
	integrationID, err = uuid.Parse(c.Param("integrationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid integration id"))
		return uuid.Nil, uuid.Nil, false
	}
	return storeID, integrationID, true
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
