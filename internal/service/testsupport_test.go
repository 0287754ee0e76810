package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/infra"
	"stocklink/internal/model"
	"stocklink/internal/platform"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── In-memory repository stubs ───────────────────────────────────────────────

type pairKey struct{ store, integration uuid.UUID }

type stubLinkRepo struct {
	links map[pairKey]*model.StoreIntegrationLink
}

func newStubLinkRepo() *stubLinkRepo {
	return &stubLinkRepo{links: make(map[pairKey]*model.StoreIntegrationLink)}
}

func (r *stubLinkRepo) Create(_ context.Context, l *model.StoreIntegrationLink) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.links[pairKey{l.StoreID, l.IntegrationID}] = l
	return nil
}

func (r *stubLinkRepo) FindByPair(_ context.Context, storeID, integrationID uuid.UUID) (*model.StoreIntegrationLink, error) {
	l, ok := r.links[pairKey{storeID, integrationID}]
	if !ok {
		return nil, errors.New("record not found")
	}
	return l, nil
}

func (r *stubLinkRepo) ListByStore(_ context.Context, storeID uuid.UUID) ([]model.StoreIntegrationLink, error) {
	var out []model.StoreIntegrationLink
	for k, l := range r.links {
		if k.store == storeID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *stubLinkRepo) ListActivePull(_ context.Context) ([]model.StoreIntegrationLink, error) {
	var out []model.StoreIntegrationLink
	for _, l := range r.links {
		if l.IsActive && l.SyncConfig.Pull.Enabled {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *stubLinkRepo) Update(_ context.Context, l *model.StoreIntegrationLink) error {
	r.links[pairKey{l.StoreID, l.IntegrationID}] = l
	return nil
}

func (r *stubLinkRepo) Delete(_ context.Context, id uuid.UUID) error {
	for k, l := range r.links {
		if l.ID == id {
			delete(r.links, k)
			return nil
		}
	}
	return errors.New("record not found")
}

type snapKey struct {
	store uuid.UUID
	sku   string
}

type stubSnapshotRepo struct {
	snaps   map[snapKey]*model.StockSnapshot
	upserts int
}

func newStubSnapshotRepo() *stubSnapshotRepo {
	return &stubSnapshotRepo{snaps: make(map[snapKey]*model.StockSnapshot)}
}

func (r *stubSnapshotRepo) Upsert(_ context.Context, snap *model.StockSnapshot) error {
	r.upserts++
	cp := *snap
	r.snaps[snapKey{snap.StoreID, snap.SKU}] = &cp
	return nil
}

func (r *stubSnapshotRepo) FindByStore(_ context.Context, storeID uuid.UUID) ([]model.StockSnapshot, error) {
	var out []model.StockSnapshot
	for k, s := range r.snaps {
		if k.store == storeID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *stubSnapshotRepo) AdjustERPQuantity(_ context.Context, storeID uuid.UUID, sku string, delta decimal.Decimal) error {
	s, ok := r.snaps[snapKey{storeID, sku}]
	if !ok {
		return nil
	}
	s.ERPQuantity = s.ERPQuantity.Add(delta)
	s.LastResult = model.SnapshotSuccess
	s.LastError = nil
	s.LastSyncAt = time.Now()
	return nil
}

func (r *stubSnapshotRepo) MarkFailed(_ context.Context, storeID uuid.UUID, sku string, cause string) error {
	k := snapKey{storeID, sku}
	s, ok := r.snaps[k]
	if !ok {
		s = &model.StockSnapshot{StoreID: storeID, SKU: sku}
		r.snaps[k] = s
	}
	s.LastResult = model.SnapshotFailed
	s.LastError = &cause
	s.LastSyncAt = time.Now()
	return nil
}

type stubUnmappedRepo struct {
	misses   map[snapKey]int
	resolved map[snapKey]bool
}

func newStubUnmappedRepo() *stubUnmappedRepo {
	return &stubUnmappedRepo{
		misses:   make(map[snapKey]int),
		resolved: make(map[snapKey]bool),
	}
}

func (r *stubUnmappedRepo) RecordMiss(_ context.Context, storeID uuid.UUID, sku, _ string) error {
	k := snapKey{storeID, sku}
	r.misses[k]++
	r.resolved[k] = false
	return nil
}

func (r *stubUnmappedRepo) ListByStore(_ context.Context, storeID uuid.UUID, includeResolved bool) ([]model.UnmappedSku, error) {
	var out []model.UnmappedSku
	for k, n := range r.misses {
		if k.store != storeID {
			continue
		}
		if r.resolved[k] && !includeResolved {
			continue
		}
		out = append(out, model.UnmappedSku{
			ID: uuid.New(), StoreID: k.store, SKU: k.sku,
			Occurrences: n, Resolved: r.resolved[k],
		})
	}
	return out, nil
}

func (r *stubUnmappedRepo) UnresolvedSKUs(_ context.Context, storeID uuid.UUID) (map[string]bool, error) {
	out := make(map[string]bool)
	for k := range r.misses {
		if k.store == storeID && !r.resolved[k] {
			out[k.sku] = true
		}
	}
	return out, nil
}

func (r *stubUnmappedRepo) MarkResolved(_ context.Context, storeID uuid.UUID, _ []uuid.UUID) (int64, error) {
	var n int64
	for k := range r.misses {
		if k.store == storeID && !r.resolved[k] {
			r.resolved[k] = true
			n++
		}
	}
	return n, nil
}

type stubStoreRepo struct {
	stores map[uuid.UUID]*model.Store
}

func newStubStoreRepo() *stubStoreRepo {
	return &stubStoreRepo{stores: make(map[uuid.UUID]*model.Store)}
}

func (r *stubStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return s, nil
}

func (r *stubStoreRepo) FindByTenant(_ context.Context, tenantID, id uuid.UUID) (*model.Store, error) {
	s, ok := r.stores[id]
	if !ok || s.TenantID != tenantID {
		return nil, errors.New("record not found")
	}
	return s, nil
}

func (r *stubStoreRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]model.Store, error) {
	var out []model.Store
	for _, s := range r.stores {
		if s.TenantID == tenantID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// ── Fake platform clients ────────────────────────────────────────────────────

type fakeERP struct {
	mu          sync.Mutex
	stock       map[string]decimal.Decimal // nil entry semantics: missing SKU
	errBySKU    map[string]error
	connErr     error
	movements   []platform.MovementRequest
	getCalls    int
	unavailable bool
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		stock:    make(map[string]decimal.Decimal),
		errBySKU: make(map[string]error),
	}
}

func (f *fakeERP) GetStock(_ context.Context, sku, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.unavailable {
		return decimal.Zero, platform.ErrUnavailable
	}
	if err, ok := f.errBySKU[sku]; ok {
		return decimal.Zero, err
	}
	qty, ok := f.stock[sku]
	if !ok {
		return decimal.Zero, platform.ErrSKUNotFound
	}
	return qty, nil
}

func (f *fakeERP) ApplyMovement(_ context.Context, req platform.MovementRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return platform.ErrUnavailable
	}
	if err, ok := f.errBySKU[req.SKU]; ok {
		return err
	}
	if _, ok := f.stock[req.SKU]; !ok {
		return platform.ErrSKUNotFound
	}
	f.movements = append(f.movements, req)
	return nil
}

func (f *fakeERP) ListWarehouses(_ context.Context) ([]platform.Warehouse, error) {
	return []platform.Warehouse{{ID: "BOD-1", Name: "Principal"}}, nil
}

func (f *fakeERP) TestConnection(_ context.Context) error {
	if f.unavailable {
		return platform.ErrUnavailable
	}
	return f.connErr
}

type fakeStoreClient struct {
	mu       sync.Mutex
	products []platform.Product
	setErr   map[string]error
	setCalls map[string]decimal.Decimal
}

func newFakeStoreClient(products ...platform.Product) *fakeStoreClient {
	return &fakeStoreClient{
		products: products,
		setErr:   make(map[string]error),
		setCalls: make(map[string]decimal.Decimal),
	}
}

func (f *fakeStoreClient) GetProductStock(_ context.Context, sku string) (decimal.Decimal, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			return p.Stock, nil
		}
	}
	return decimal.Zero, platform.ErrSKUNotFound
}

func (f *fakeStoreClient) SetProductStock(_ context.Context, sku string, quantity decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.setErr[sku]; ok {
		return err
	}
	f.setCalls[sku] = quantity
	for i := range f.products {
		if f.products[i].SKU == sku {
			f.products[i].Stock = quantity
		}
	}
	return nil
}

func (f *fakeStoreClient) ListProducts(_ context.Context) ([]platform.Product, error) {
	out := make([]platform.Product, len(f.products))
	copy(out, f.products)
	return out, nil
}

// ── Fake locker ──────────────────────────────────────────────────────────────

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]bool)} }

type fakeLock struct {
	key    string
	locker *fakeLocker
}

func (l *fakeLock) Release(_ context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.key)
	return nil
}

func (l *fakeLocker) Obtain(_ context.Context, key string, _ time.Duration) (infra.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, infra.ErrLockHeld
	}
	l.held[key] = true
	return &fakeLock{key: key, locker: l}, nil
}

// ── Fixture helpers ──────────────────────────────────────────────────────────

type pullFixture struct {
	tenantID     uuid.UUID
	store        *model.Store
	integration  *model.Integration
	link         *model.StoreIntegrationLink
	linkRepo     *stubLinkRepo
	snapshotRepo *stubSnapshotRepo
	unmappedRepo *stubUnmappedRepo
	erp          *fakeERP
	storeClient  *fakeStoreClient
	locker       *fakeLocker
	svc          PullService
}

func newPullFixture(products ...platform.Product) *pullFixture {
	f := &pullFixture{
		tenantID:     uuid.New(),
		linkRepo:     newStubLinkRepo(),
		snapshotRepo: newStubSnapshotRepo(),
		unmappedRepo: newStubUnmappedRepo(),
		erp:          newFakeERP(),
		storeClient:  newFakeStoreClient(products...),
		locker:       newFakeLocker(),
	}
	f.store = &model.Store{
		ID: uuid.New(), TenantID: f.tenantID,
		Platform: model.PlatformShopify, IsActive: true,
	}
	f.integration = &model.Integration{
		ID: uuid.New(), TenantID: f.tenantID,
		Type: model.IntegrationContifico, IsActive: true,
		Settings: model.IntegrationSettings{
			Contifico: &model.ContificoSettings{Env: "test", APIKeys: model.APIKeys{Test: "k"}},
		},
	}
	f.link = &model.StoreIntegrationLink{
		ID: uuid.New(), StoreID: f.store.ID, IntegrationID: f.integration.ID,
		IsActive: true, Store: f.store, Integration: f.integration,
	}
	f.linkRepo.links[pairKey{f.store.ID, f.integration.ID}] = f.link

	erpFactory := func(*model.Integration) (platform.ERPClient, error) { return f.erp, nil }
	storeFactory := func(*model.Store) (platform.StoreClient, error) { return f.storeClient, nil }
	f.svc = NewPullService(f.linkRepo, f.snapshotRepo, f.unmappedRepo, erpFactory, storeFactory, f.locker, 250)
	return f
}

func (f *pullFixture) pull(opts PullOptions) (*dto.SyncResult, error) {
	return f.svc.Pull(context.Background(), f.tenantID, f.store.ID, f.integration.ID, opts)
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
