package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/infra"
	"stocklink/internal/model"
	"stocklink/internal/platform"
	"stocklink/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrPullInProgress: a second trigger for the same (store, integration)
	// while one is running is rejected, never run in parallel.
	ErrPullInProgress = errors.New("a pull for this store and integration is already running")
	ErrLinkNotActive  = errors.New("store integration link not found or inactive")
	// ErrIntegrationDown wraps connectivity failures: the whole run aborts
	// with a single top-level error instead of per-SKU entries.
	ErrIntegrationDown = errors.New("integration unreachable")
)

// PullOptions narrows one pull invocation. Limit caps SKUs processed per run
// (cost bound against rate-limited platform APIs); SKUs is the selective-sync
// allow-list; DryRun suppresses every write while still returning the counts
// a real run would produce.
type PullOptions struct {
	DryRun bool
	Limit  int
	SKUs   []string
}

// PullService brings store stock in line with ERP stock for one
// (store, integration) pair.
type PullService interface {
	Pull(ctx context.Context, tenantID, storeID, integrationID uuid.UUID, opts PullOptions) (*dto.SyncResult, error)
}

type pullService struct {
	linkRepo     repository.LinkRepository
	snapshotRepo repository.SnapshotRepository
	unmappedRepo repository.UnmappedSkuRepository
	erpFactory   platform.ERPFactory
	storeFactory platform.StoreFactory
	locker       infra.Locker
	defaultLimit int
}

func NewPullService(
	linkRepo repository.LinkRepository,
	snapshotRepo repository.SnapshotRepository,
	unmappedRepo repository.UnmappedSkuRepository,
	erpFactory platform.ERPFactory,
	storeFactory platform.StoreFactory,
	locker infra.Locker,
	defaultLimit int,
) PullService {
	return &pullService{
		linkRepo:     linkRepo,
		snapshotRepo: snapshotRepo,
		unmappedRepo: unmappedRepo,
		erpFactory:   erpFactory,
		storeFactory: storeFactory,
		locker:       locker,
		defaultLimit: defaultLimit,
	}
}

// pullLockTTL bounds how long a crashed puller blocks the next trigger.
const pullLockTTL = 10 * time.Minute

func (s *pullService) Pull(ctx context.Context, tenantID, storeID, integrationID uuid.UUID, opts PullOptions) (*dto.SyncResult, error) {
	link, err := s.linkRepo.FindByPair(ctx, storeID, integrationID)
	if err != nil || !link.IsActive {
		return nil, ErrLinkNotActive
	}
	if link.Store == nil || link.Integration == nil ||
		link.Store.TenantID != tenantID || link.Integration.TenantID != tenantID {
		return nil, ErrLinkNotActive
	}
	if !link.Integration.IsActive || !link.Store.IsActive {
		return nil, ErrLinkNotActive
	}

	lock, err := s.locker.Obtain(ctx, fmt.Sprintf("pull:%s:%s", storeID, integrationID), pullLockTTL)
	if errors.Is(err, infra.ErrLockHeld) {
		return nil, ErrPullInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("pull_engine: obtain lock: %w", err)
	}
	defer func() { _ = lock.Release(context.Background()) }()

	erp, err := s.erpFactory(link.Integration)
	if err != nil {
		return nil, err
	}
	storeClient, err := s.storeFactory(link.Store)
	if err != nil {
		return nil, err
	}

	// Preflight: distinguish "integration down" from product-level issues
	// before touching any SKU.
	if err := erp.TestConnection(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrationDown, err)
	}

	warehouse := resolveWarehouse(link)

	candidates, err := s.listCandidates(ctx, storeClient, opts.SKUs)
	if err != nil {
		return nil, fmt.Errorf("pull_engine: list store products: %w", err)
	}

	// The limit caps full-catalog runs only. A selective run already carries
	// an explicit, validation-bounded allow-list; truncating it would drop
	// SKUs the caller asked for by name.
	if len(opts.SKUs) == 0 {
		limit := opts.Limit
		if limit <= 0 || limit > s.defaultLimit {
			limit = s.defaultLimit
		}
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
	}

	result := &dto.SyncResult{Errors: []dto.SKUError{}, DryRun: opts.DryRun}
	start := time.Now()

	for _, p := range candidates {
		if err := s.pullOne(ctx, link, erp, storeClient, warehouse, p, opts.DryRun, result); err != nil {
			// Connectivity loss mid-run aborts the batch; partial counts are
			// still returned alongside the top-level error.
			if errors.Is(err, platform.ErrUnavailable) {
				return result, fmt.Errorf("%w: %v", ErrIntegrationDown, err)
			}
			return result, err
		}
	}

	log.Info().
		Str("store_id", storeID.String()).
		Str("integration_id", integrationID.String()).
		Int("success", result.Success).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Bool("dry_run", opts.DryRun).
		Dur("elapsed", time.Since(start)).
		Msg("pull_engine: run finished")
	return result, nil
}

// pullOne reconciles a single SKU. Exactly one outcome per SKU per run;
// platform write errors are recorded and never abort the batch.
func (s *pullService) pullOne(
	ctx context.Context,
	link *model.StoreIntegrationLink,
	erp platform.ERPClient,
	storeClient platform.StoreClient,
	warehouse string,
	p platform.Product,
	dryRun bool,
	result *dto.SyncResult,
) error {
	erpQty, err := erp.GetStock(ctx, p.SKU, warehouse)
	switch {
	case errors.Is(err, platform.ErrSKUNotFound):
		result.Skipped++
		if !dryRun {
			if recErr := s.unmappedRepo.RecordMiss(ctx, link.StoreID, p.SKU, p.Name); recErr != nil {
				log.Error().Err(recErr).Str("sku", p.SKU).Msg("pull_engine: record unmapped sku")
			}
		}
		return nil
	case errors.Is(err, platform.ErrUnavailable):
		return err
	case err != nil:
		result.Failed++
		result.Errors = append(result.Errors, dto.SKUError{SKU: p.SKU, Error: err.Error()})
		s.writeSnapshot(ctx, link, p, erpQty, model.SnapshotFailed, err, dryRun)
		return nil
	}

	if p.Stock.Equal(erpQty) {
		// Already in line - no-op write avoided.
		result.Skipped++
		s.writeSnapshot(ctx, link, p, erpQty, model.SnapshotSuccess, nil, dryRun)
		return nil
	}

	if !dryRun {
		if err := storeClient.SetProductStock(ctx, p.SKU, erpQty); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, dto.SKUError{SKU: p.SKU, Error: err.Error()})
			s.writeSnapshot(ctx, link, p, erpQty, model.SnapshotFailed, err, dryRun)
			return nil
		}
	}

	result.Success++
	// After a successful write the store carries the ERP quantity.
	p.Stock = erpQty
	s.writeSnapshot(ctx, link, p, erpQty, model.SnapshotSuccess, nil, dryRun)
	return nil
}

func (s *pullService) writeSnapshot(
	ctx context.Context,
	link *model.StoreIntegrationLink,
	p platform.Product,
	erpQty decimal.Decimal,
	outcome string,
	opErr error,
	dryRun bool,
) {
	if dryRun {
		return
	}
	snap := &model.StockSnapshot{
		StoreID:       link.StoreID,
		SKU:           p.SKU,
		ERPQuantity:   erpQty,
		StoreQuantity: p.Stock,
		LastResult:    outcome,
		LastSyncAt:    time.Now(),
	}
	if opErr != nil {
		msg := opErr.Error()
		snap.LastError = &msg
	}
	if err := s.snapshotRepo.Upsert(ctx, snap); err != nil {
		log.Error().Err(err).Str("sku", p.SKU).Msg("pull_engine: upsert snapshot")
	}
}

// resolveWarehouse applies the scope chain: link override → integration
// default → global ("" = all warehouses summed).
func resolveWarehouse(link *model.StoreIntegrationLink) string {
	if w := link.SyncConfig.Pull.Warehouse; w != "" {
		return w
	}
	if link.Integration != nil && link.Integration.Settings.Contifico != nil {
		return link.Integration.Settings.Contifico.WarehousePrimary
	}
	return ""
}

// listCandidates resolves the SKU set for one run: the caller's allow-list,
// or the store's whole catalog.
func (s *pullService) listCandidates(ctx context.Context, storeClient platform.StoreClient, skus []string) ([]platform.Product, error) {
	products, err := storeClient.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(skus) == 0 {
		return products, nil
	}
	allow := make(map[string]bool, len(skus))
	for _, sku := range skus {
		allow[sku] = true
	}
	filtered := make([]platform.Product, 0, len(skus))
	for _, p := range products {
		if allow[p.SKU] {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}
