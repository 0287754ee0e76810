package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stocklink/internal/infra"
	"stocklink/internal/model"
	"stocklink/internal/platform"
	"stocklink/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// drainLockKey serializes the drain loop across process instances: claimed
// rows are already protected by SKIP LOCKED, the lock just avoids redundant
// contending ticks.
const drainLockKey = "stocklink:drain"

// DrainerConfig tunes the movement drain loop.
type DrainerConfig struct {
	Interval   time.Duration
	BatchSize  int
	StaleAfter time.Duration
}

// Drainer is the consumer side of the movement queue. Each tick it sweeps
// stale "processing" rows back to "pending", claims a batch, and applies each
// movement to the ERP through the circuit breaker.
type Drainer struct {
	cfg          DrainerConfig
	movementRepo repository.MovementRepository
	storeRepo    repository.StoreRepository
	linkRepo     repository.LinkRepository
	snapshotRepo repository.SnapshotRepository
	unmappedRepo repository.UnmappedSkuRepository
	erpFactory   platform.ERPFactory
	locker       infra.Locker
	breaker      *infra.CircuitBreaker
	dispatcher   *Dispatcher
}

func NewDrainer(
	cfg DrainerConfig,
	movementRepo repository.MovementRepository,
	storeRepo repository.StoreRepository,
	linkRepo repository.LinkRepository,
	snapshotRepo repository.SnapshotRepository,
	unmappedRepo repository.UnmappedSkuRepository,
	erpFactory platform.ERPFactory,
	locker infra.Locker,
	breaker *infra.CircuitBreaker,
	dispatcher *Dispatcher,
) *Drainer {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	return &Drainer{
		cfg:          cfg,
		movementRepo: movementRepo,
		storeRepo:    storeRepo,
		linkRepo:     linkRepo,
		snapshotRepo: snapshotRepo,
		unmappedRepo: unmappedRepo,
		erpFactory:   erpFactory,
		locker:       locker,
		breaker:      breaker,
		dispatcher:   dispatcher,
	}
}

// Start runs the drain loop until ctx is cancelled. The first tick fires
// immediately so movements stranded by a previous crash recover at startup.
func (d *Drainer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		d.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("drainer: shutting down")
				return
			case <-ticker.C:
				d.tick(ctx)
			}
		}
	}()
	log.Info().
		Dur("interval", d.cfg.Interval).
		Int("batch_size", d.cfg.BatchSize).
		Msg("drainer: started")
}

func (d *Drainer) tick(ctx context.Context) {
	lock, err := d.locker.Obtain(ctx, drainLockKey, 2*d.cfg.Interval)
	if errors.Is(err, infra.ErrLockHeld) {
		return // another instance is draining
	}
	if err != nil {
		log.Error().Err(err).Msg("drainer: could not obtain drain lock")
		return
	}
	defer func() { _ = lock.Release(ctx) }()

	if n, err := d.movementRepo.ResetStale(ctx, d.cfg.StaleAfter); err != nil {
		log.Error().Err(err).Msg("drainer: stale sweep failed")
	} else if n > 0 {
		log.Warn().Int64("recovered", n).Msg("drainer: stale processing movements returned to pending")
	}

	movements, err := d.movementRepo.ClaimPending(ctx, d.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("drainer: claim failed")
		return
	}
	if len(movements) == 0 {
		return
	}

	log.Info().Int("claimed", len(movements)).Msg("drainer: batch claimed")

	// One ERP client (and warehouse) per store, resolved once per batch.
	clients := make(map[uuid.UUID]*erpTarget)
	for i := range movements {
		d.processMovement(ctx, &movements[i], clients)
	}
}

// erpTarget caches the resolved ERP client for a store within one batch.
// err records a resolution failure so each movement of a broken store fails
// once instead of re-resolving per row.
type erpTarget struct {
	client    platform.ERPClient
	warehouse string
	err       error
}

func (d *Drainer) resolveTarget(ctx context.Context, storeID uuid.UUID, clients map[uuid.UUID]*erpTarget) *erpTarget {
	if t, ok := clients[storeID]; ok {
		return t
	}
	t := &erpTarget{}
	clients[storeID] = t

	store, err := d.storeRepo.FindByID(ctx, storeID)
	if err != nil {
		t.err = fmt.Errorf("store %s not found: %w", storeID, err)
		return t
	}
	if !store.IsActive {
		t.err = fmt.Errorf("store %s is inactive", storeID)
		return t
	}

	links, err := d.linkRepo.ListByStore(ctx, storeID)
	if err != nil {
		t.err = err
		return t
	}
	var link *model.StoreIntegrationLink
	for i := range links {
		if links[i].IsActive && links[i].Integration != nil && links[i].Integration.IsActive {
			link = &links[i]
			break
		}
	}
	if link == nil {
		t.err = fmt.Errorf("store %s has no active integration link", storeID)
		return t
	}

	client, err := d.erpFactory(link.Integration)
	if err != nil {
		t.err = err
		return t
	}
	t.client = client
	t.warehouse = link.SyncConfig.Pull.Warehouse
	if t.warehouse == "" && link.Integration.Settings.Contifico != nil {
		t.warehouse = link.Integration.Settings.Contifico.WarehousePrimary
	}
	return t
}

func (d *Drainer) processMovement(ctx context.Context, m *model.Movement, clients map[uuid.UUID]*erpTarget) {
	target := d.resolveTarget(ctx, m.StoreID, clients)
	if target.err != nil {
		d.recordFailure(ctx, m, target.err)
		return
	}

	err := d.breaker.Execute(func() error {
		applyCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()
		return target.client.ApplyMovement(applyCtx, platform.MovementRequest{
			SKU:       m.SKU,
			Quantity:  m.Quantity,
			Type:      m.MovementType,
			Warehouse: target.warehouse,
			Reference: m.OrderID,
		})
	})

	switch {
	case err == nil:
		d.recordSuccess(ctx, m)
	case errors.Is(err, infra.ErrCircuitOpen):
		// ERP is down. Return the movement untouched - an open breaker must
		// not consume the retry budget.
		m.Status = model.MovementPending
		if uerr := d.movementRepo.Update(ctx, m); uerr != nil {
			log.Error().Err(uerr).Str("movement_id", m.ID.String()).Msg("drainer: requeue after open circuit failed")
		}
	case errors.Is(err, platform.ErrSKUNotFound):
		// Structural, never retried: the SKU has no ERP record.
		d.recordTerminal(ctx, m, err)
		if rerr := d.unmappedRepo.RecordMiss(ctx, m.StoreID, m.SKU, ""); rerr != nil {
			log.Error().Err(rerr).Str("sku", m.SKU).Msg("drainer: recording unmapped sku failed")
		}
	default:
		d.recordFailure(ctx, m, err)
	}
}

func (d *Drainer) recordSuccess(ctx context.Context, m *model.Movement) {
	now := time.Now()
	m.Status = model.MovementCompleted
	m.Attempts++
	m.ProcessedAt = &now
	m.ErrorMessage = nil
	if err := d.movementRepo.Update(ctx, m); err != nil {
		log.Error().Err(err).Str("movement_id", m.ID.String()).Msg("drainer: completing movement failed")
		return
	}

	// Keep the projection honest without re-reading the ERP: an egreso
	// lowers the recorded ERP quantity, an ingreso raises it.
	delta := m.Quantity
	if m.MovementType == model.MovementEgreso {
		delta = delta.Neg()
	}
	if err := d.snapshotRepo.AdjustERPQuantity(ctx, m.StoreID, m.SKU, delta); err != nil {
		log.Error().Err(err).Str("sku", m.SKU).Msg("drainer: snapshot adjust failed")
	}

	log.Info().
		Str("movement_id", m.ID.String()).
		Str("sku", m.SKU).
		Str("type", m.MovementType).
		Msg("drainer: movement applied")
}

func (d *Drainer) recordFailure(ctx context.Context, m *model.Movement, cause error) {
	m.Attempts++
	msg := cause.Error()
	m.ErrorMessage = &msg
	if m.Attempts >= m.MaxAttempts {
		m.Status = model.MovementFailed
		d.notifyFailure(ctx, m, cause)
	} else {
		m.Status = model.MovementPending
	}
	if err := d.movementRepo.Update(ctx, m); err != nil {
		log.Error().Err(err).Str("movement_id", m.ID.String()).Msg("drainer: recording failure failed")
		return
	}
	d.markSnapshotFailed(ctx, m, cause)
	log.Warn().
		Str("movement_id", m.ID.String()).
		Str("sku", m.SKU).
		Int("attempts", m.Attempts).
		Int("max_attempts", m.MaxAttempts).
		Str("status", m.Status).
		Err(cause).
		Msg("drainer: movement attempt failed")
}

func (d *Drainer) recordTerminal(ctx context.Context, m *model.Movement, cause error) {
	m.Attempts++
	msg := cause.Error()
	m.ErrorMessage = &msg
	m.Status = model.MovementFailed
	if err := d.movementRepo.Update(ctx, m); err != nil {
		log.Error().Err(err).Str("movement_id", m.ID.String()).Msg("drainer: recording terminal failure failed")
	}
	d.markSnapshotFailed(ctx, m, cause)
	d.notifyFailure(ctx, m, cause)
	log.Warn().
		Str("movement_id", m.ID.String()).
		Str("sku", m.SKU).
		Err(cause).
		Msg("drainer: movement failed terminally")
}

// markSnapshotFailed surfaces a push failure to the status projection: the
// SKU classifies as "error" until a later pull or movement succeeds.
func (d *Drainer) markSnapshotFailed(ctx context.Context, m *model.Movement, cause error) {
	if err := d.snapshotRepo.MarkFailed(ctx, m.StoreID, m.SKU, cause.Error()); err != nil {
		log.Error().Err(err).Str("sku", m.SKU).Msg("drainer: marking snapshot failed")
	}
}

func (d *Drainer) notifyFailure(ctx context.Context, m *model.Movement, cause error) {
	if d.dispatcher == nil {
		return
	}
	payload := NotificationJobPayload{
		Subject: fmt.Sprintf("Movement %s failed permanently", m.ID),
		Body: fmt.Sprintf(
			"Order %s, SKU %s (%s x %s) could not be applied to the ERP after %d attempts.\nLast error: %v\n",
			m.OrderID, m.SKU, m.MovementType, m.Quantity, m.Attempts, cause,
		),
	}
	if err := d.dispatcher.EnqueueNotification(ctx, payload); err != nil {
		log.Error().Err(err).Str("movement_id", m.ID.String()).Msg("drainer: enqueue notification failed")
	}
}
