package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/model"
	"stocklink/internal/platform"
	"stocklink/internal/repository"

	"github.com/google/uuid"
)

// StatusService answers "what is the reconciliation state of each product"
// for the dashboard. It keeps no state of its own: everything derives from
// the store catalog, the stock snapshots, and the unmapped-SKU records.
type StatusService interface {
	GetSyncStatus(ctx context.Context, tenantID, storeID uuid.UUID, q dto.SyncStatusQuery) (*dto.SyncStatusResponse, error)
}

type statusService struct {
	storeRepo    repository.StoreRepository
	snapshotRepo repository.SnapshotRepository
	unmappedRepo repository.UnmappedSkuRepository
	storeFactory platform.StoreFactory
}

func NewStatusService(
	storeRepo repository.StoreRepository,
	snapshotRepo repository.SnapshotRepository,
	unmappedRepo repository.UnmappedSkuRepository,
	storeFactory platform.StoreFactory,
) StatusService {
	return &statusService{
		storeRepo:    storeRepo,
		snapshotRepo: snapshotRepo,
		unmappedRepo: unmappedRepo,
		storeFactory: storeFactory,
	}
}

// ClassifyProduct is the pure classification at the core of the projection.
// Deterministic given the same inputs:
//
//	not_in_contifico - unresolved UnmappedSku exists for the SKU
//	error            - the last operation touching the SKU failed
//	pending          - no sync has ever touched the SKU
//	synced           - last op succeeded and quantities agree
//	different        - quantities disagree (pull or push not yet applied)
func ClassifyProduct(p platform.Product, snap *model.StockSnapshot, unmapped bool) string {
	if unmapped {
		return dto.SyncStatusNotInContifico
	}
	if snap == nil {
		return dto.SyncStatusPending
	}
	if snap.LastResult == model.SnapshotFailed {
		return dto.SyncStatusError
	}
	if p.Stock.Equal(snap.ERPQuantity) {
		return dto.SyncStatusSynced
	}
	return dto.SyncStatusDifferent
}

func (s *statusService) GetSyncStatus(ctx context.Context, tenantID, storeID uuid.UUID, q dto.SyncStatusQuery) (*dto.SyncStatusResponse, error) {
	store, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID)
	if err != nil {
		return nil, err
	}
	client, err := s.storeFactory(store)
	if err != nil {
		return nil, err
	}

	products, err := client.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := s.snapshotRepo.FindByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	unmapped, err := s.unmappedRepo.UnresolvedSKUs(ctx, storeID)
	if err != nil {
		return nil, err
	}

	snapBySKU := make(map[string]*model.StockSnapshot, len(snaps))
	var lastSyncAt *time.Time
	for i := range snaps {
		snapBySKU[snaps[i].SKU] = &snaps[i]
		if lastSyncAt == nil || snaps[i].LastSyncAt.After(*lastSyncAt) {
			t := snaps[i].LastSyncAt
			lastSyncAt = &t
		}
	}

	all := make([]dto.ProductSyncStatus, 0, len(products))
	for _, p := range products {
		snap := snapBySKU[p.SKU]
		status := ClassifyProduct(p, snap, unmapped[p.SKU])

		item := dto.ProductSyncStatus{
			SKU:        p.SKU,
			Name:       p.Name,
			StockStore: p.Stock,
			Status:     status,
		}
		if snap != nil {
			erpQty := snap.ERPQuantity
			item.StockContifico = &erpQty
			ts := snap.LastSyncAt.UTC().Format(time.RFC3339)
			item.LastSync = &ts
		}
		all = append(all, item)
	}

	// Filtering and pagination are presentation concerns layered on top of
	// the classification.
	filtered := all[:0:0]
	search := strings.ToLower(q.Search)
	for _, item := range all {
		if q.Status != "" && item.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(item.SKU), search) &&
			!strings.Contains(strings.ToLower(item.Name), search) {
			continue
		}
		filtered = append(filtered, item)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].SKU < filtered[j].SKU })

	page := q.Page
	limit := q.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	total := int64(len(filtered))
	start := (page - 1) * limit
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	resp := &dto.SyncStatusResponse{
		Products:   filtered[start:end],
		Pagination: dto.Pagination{Page: page, Limit: limit, Total: total},
	}
	if lastSyncAt != nil {
		ts := lastSyncAt.UTC().Format(time.RFC3339)
		resp.LastSyncAt = &ts
	}
	return resp, nil
}
