package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/infra"
	"stocklink/internal/model"
	"stocklink/internal/platform"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory stubs for the drain loop's collaborators ───────────────────────

type memMovementRepo struct {
	mu        sync.Mutex
	movements map[uuid.UUID]*model.Movement
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{movements: make(map[uuid.UUID]*model.Movement)}
}

func (r *memMovementRepo) add(m *model.Movement) *model.Movement {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.movements[m.ID] = m
	return m
}

func (r *memMovementRepo) Create(_ context.Context, m *model.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.add(m)
	return nil
}

func (r *memMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.movements[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return m, nil
}

func (r *memMovementRepo) List(_ context.Context, _ dto.MovementFilter) ([]model.Movement, int64, error) {
	return nil, 0, nil
}

func (r *memMovementRepo) Update(_ context.Context, m *model.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.movements[m.ID] = &cp
	return nil
}

func (r *memMovementRepo) ClaimPending(_ context.Context, limit int) ([]model.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Movement
	now := time.Now()
	for _, m := range r.movements {
		if len(out) == limit {
			break
		}
		if m.Status != model.MovementPending {
			continue
		}
		m.Status = model.MovementProcessing
		t := now
		m.LastAttemptAt = &t
		out = append(out, *m)
	}
	return out, nil
}

func (r *memMovementRepo) ResetStale(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for _, m := range r.movements {
		if m.Status == model.MovementProcessing && m.LastAttemptAt != nil && m.LastAttemptAt.Before(cutoff) {
			m.Status = model.MovementPending
			n++
		}
	}
	return n, nil
}

func (r *memMovementRepo) CountByStatus(_ context.Context, _ uuid.UUID) (map[string]int64, error) {
	return nil, nil
}

type memStoreRepo struct{ stores map[uuid.UUID]*model.Store }

func (r *memStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return s, nil
}

func (r *memStoreRepo) FindByTenant(_ context.Context, tenantID, id uuid.UUID) (*model.Store, error) {
	s, err := r.FindByID(context.Background(), id)
	if err != nil || s.TenantID != tenantID {
		return nil, errors.New("record not found")
	}
	return s, nil
}

func (r *memStoreRepo) ListByTenant(_ context.Context, _ uuid.UUID) ([]model.Store, error) {
	return nil, nil
}

type memLinkRepo struct{ links []model.StoreIntegrationLink }

func (r *memLinkRepo) Create(_ context.Context, _ *model.StoreIntegrationLink) error { return nil }
func (r *memLinkRepo) FindByPair(_ context.Context, _, _ uuid.UUID) (*model.StoreIntegrationLink, error) {
	return nil, errors.New("record not found")
}
func (r *memLinkRepo) ListByStore(_ context.Context, storeID uuid.UUID) ([]model.StoreIntegrationLink, error) {
	var out []model.StoreIntegrationLink
	for _, l := range r.links {
		if l.StoreID == storeID {
			out = append(out, l)
		}
	}
	return out, nil
}
func (r *memLinkRepo) ListActivePull(_ context.Context) ([]model.StoreIntegrationLink, error) {
	return nil, nil
}
func (r *memLinkRepo) Update(_ context.Context, _ *model.StoreIntegrationLink) error { return nil }
func (r *memLinkRepo) Delete(_ context.Context, _ uuid.UUID) error                   { return nil }

type memSnapshotRepo struct {
	mu      sync.Mutex
	adjusts map[string]decimal.Decimal
	failed  map[string]string // sku -> last error marked on the snapshot
}

func (r *memSnapshotRepo) Upsert(_ context.Context, _ *model.StockSnapshot) error { return nil }
func (r *memSnapshotRepo) FindByStore(_ context.Context, _ uuid.UUID) ([]model.StockSnapshot, error) {
	return nil, nil
}
func (r *memSnapshotRepo) AdjustERPQuantity(_ context.Context, _ uuid.UUID, sku string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adjusts == nil {
		r.adjusts = make(map[string]decimal.Decimal)
	}
	r.adjusts[sku] = r.adjusts[sku].Add(delta)
	delete(r.failed, sku)
	return nil
}
func (r *memSnapshotRepo) MarkFailed(_ context.Context, _ uuid.UUID, sku string, cause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = make(map[string]string)
	}
	r.failed[sku] = cause
	return nil
}

type memUnmappedRepo struct {
	mu     sync.Mutex
	misses map[string]int
}

func (r *memUnmappedRepo) RecordMiss(_ context.Context, _ uuid.UUID, sku, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.misses == nil {
		r.misses = make(map[string]int)
	}
	r.misses[sku]++
	return nil
}
func (r *memUnmappedRepo) ListByStore(_ context.Context, _ uuid.UUID, _ bool) ([]model.UnmappedSku, error) {
	return nil, nil
}
func (r *memUnmappedRepo) UnresolvedSKUs(_ context.Context, _ uuid.UUID) (map[string]bool, error) {
	return nil, nil
}
func (r *memUnmappedRepo) MarkResolved(_ context.Context, _ uuid.UUID, _ []uuid.UUID) (int64, error) {
	return 0, nil
}

type memERP struct {
	mu       sync.Mutex
	applied  []platform.MovementRequest
	errBySKU map[string]error
}

func (f *memERP) GetStock(_ context.Context, _, _ string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (f *memERP) ApplyMovement(_ context.Context, req platform.MovementRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errBySKU[req.SKU]; ok {
		return err
	}
	f.applied = append(f.applied, req)
	return nil
}
func (f *memERP) ListWarehouses(_ context.Context) ([]platform.Warehouse, error) { return nil, nil }
func (f *memERP) TestConnection(_ context.Context) error                         { return nil }

type noopLock struct{}

func (noopLock) Release(_ context.Context) error { return nil }

type noopLocker struct{}

func (noopLocker) Obtain(_ context.Context, _ string, _ time.Duration) (infra.Lock, error) {
	return noopLock{}, nil
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type drainFixture struct {
	store        *model.Store
	movementRepo *memMovementRepo
	snapshotRepo *memSnapshotRepo
	unmappedRepo *memUnmappedRepo
	erp          *memERP
	drainer      *Drainer
}

func newDrainFixture(t *testing.T) *drainFixture {
	t.Helper()
	tenantID := uuid.New()
	store := &model.Store{ID: uuid.New(), TenantID: tenantID, Platform: model.PlatformShopify, IsActive: true}
	integration := &model.Integration{
		ID: uuid.New(), TenantID: tenantID, Type: model.IntegrationContifico, IsActive: true,
		Settings: model.IntegrationSettings{Contifico: &model.ContificoSettings{Env: "test", APIKeys: model.APIKeys{Test: "k"}}},
	}
	f := &drainFixture{
		store:        store,
		movementRepo: newMemMovementRepo(),
		snapshotRepo: &memSnapshotRepo{},
		unmappedRepo: &memUnmappedRepo{},
		erp:          &memERP{errBySKU: make(map[string]error)},
	}
	linkRepo := &memLinkRepo{links: []model.StoreIntegrationLink{{
		ID: uuid.New(), StoreID: store.ID, IntegrationID: integration.ID,
		IsActive: true, Store: store, Integration: integration,
	}}}
	storeRepo := &memStoreRepo{stores: map[uuid.UUID]*model.Store{store.ID: store}}
	erpFactory := func(*model.Integration) (platform.ERPClient, error) { return f.erp, nil }

	f.drainer = NewDrainer(
		DrainerConfig{Interval: time.Second, BatchSize: 10, StaleAfter: 5 * time.Minute},
		f.movementRepo, storeRepo, linkRepo, f.snapshotRepo, f.unmappedRepo,
		erpFactory, noopLocker{}, infra.NewCircuitBreaker(infra.DefaultCBConfig()), nil,
	)
	return f
}

func (f *drainFixture) enqueue(sku, movementType string, qty int64) *model.Movement {
	m := &model.Movement{
		StoreID: f.store.ID, OrderID: "1001", SKU: sku,
		Quantity: decimal.NewFromInt(qty), MovementType: movementType,
		EventType: "order", Status: model.MovementPending, MaxAttempts: 3,
	}
	f.movementRepo.mu.Lock()
	defer f.movementRepo.mu.Unlock()
	return f.movementRepo.add(m)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestDrainAppliesMovementAndAdjustsSnapshot(t *testing.T) {
	f := newDrainFixture(t)
	egreso := f.enqueue("A", model.MovementEgreso, 2)
	ingreso := f.enqueue("B", model.MovementIngreso, 3)

	f.drainer.tick(context.Background())

	got, _ := f.movementRepo.FindByID(context.Background(), egreso.ID)
	assert.Equal(t, model.MovementCompleted, got.Status)
	require.NotNil(t, got.ProcessedAt)

	require.Len(t, f.erp.applied, 2)
	assert.True(t, f.snapshotRepo.adjusts["A"].Equal(decimal.NewFromInt(-2)), "egreso lowers the recorded ERP quantity")
	assert.True(t, f.snapshotRepo.adjusts["B"].Equal(decimal.NewFromInt(3)), "ingreso raises it")

	got, _ = f.movementRepo.FindByID(context.Background(), ingreso.ID)
	assert.Equal(t, model.MovementCompleted, got.Status)
}

func TestDrainRetriesUntilBudgetExhausted(t *testing.T) {
	f := newDrainFixture(t)
	f.erp.errBySKU["A"] = errors.New("erp timeout")
	m := f.enqueue("A", model.MovementEgreso, 1)

	// attempts 1 and 2 re-queue…
	f.drainer.tick(context.Background())
	got, _ := f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.ErrorMessage)

	f.drainer.tick(context.Background())
	got, _ = f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementPending, got.Status)
	assert.Equal(t, 2, got.Attempts)

	// …the third is terminal.
	f.drainer.tick(context.Background())
	got, _ = f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)

	// Failed movements are never claimed again.
	f.drainer.tick(context.Background())
	got, _ = f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, 3, got.Attempts)
}

func TestDrainFailureReachesSnapshot(t *testing.T) {
	f := newDrainFixture(t)
	f.erp.errBySKU["A"] = errors.New("erp timeout")
	f.enqueue("A", model.MovementEgreso, 1)

	// The very first failed attempt already marks the snapshot, so the
	// status projection classifies the SKU as "error" rather than keeping
	// its pre-failure state.
	f.drainer.tick(context.Background())
	assert.Equal(t, "erp timeout", f.snapshotRepo.failed["A"])

	// A later success clears the mark again.
	delete(f.erp.errBySKU, "A")
	f.drainer.tick(context.Background())
	_, stillFailed := f.snapshotRepo.failed["A"]
	assert.False(t, stillFailed, "a successful apply must clear the failure mark")
}

func TestDrainSKUNotFoundIsTerminal(t *testing.T) {
	f := newDrainFixture(t)
	f.erp.errBySKU["GHOST"] = platform.ErrSKUNotFound
	m := f.enqueue("GHOST", model.MovementEgreso, 1)

	f.drainer.tick(context.Background())

	got, _ := f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementFailed, got.Status, "missing SKU mapping must not burn retries")
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, 1, f.unmappedRepo.misses["GHOST"])
	assert.NotEmpty(t, f.snapshotRepo.failed["GHOST"], "terminal failure must reach the snapshot")
}

func TestDrainOpenCircuitPreservesRetryBudget(t *testing.T) {
	f := newDrainFixture(t)
	// trip the breaker
	for i := 0; i < infra.DefaultCBConfig().FailureThreshold; i++ {
		_ = f.drainer.breaker.Execute(func() error { return errors.New("down") })
	}
	m := f.enqueue("A", model.MovementEgreso, 1)

	f.drainer.tick(context.Background())

	got, _ := f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementPending, got.Status)
	assert.Equal(t, 0, got.Attempts, "an open circuit must not consume attempts")
}

func TestDrainRecoversStaleProcessing(t *testing.T) {
	f := newDrainFixture(t)
	m := f.enqueue("A", model.MovementEgreso, 1)
	// simulate a crash mid-drain: stuck in processing since long ago
	old := time.Now().Add(-time.Hour)
	m.Status = model.MovementProcessing
	m.LastAttemptAt = &old

	f.drainer.tick(context.Background())

	got, _ := f.movementRepo.FindByID(context.Background(), m.ID)
	assert.Equal(t, model.MovementCompleted, got.Status, "stale row must be swept back and processed in the same tick")
}
