package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── In-memory MovementRepository stub ────────────────────────────────────────

type stubMovementRepo struct {
	movements    map[uuid.UUID]*model.Movement
	storeTenants map[uuid.UUID]uuid.UUID // mirrors the stores join used for tenant scoping
}

func newStubMovementRepo() *stubMovementRepo {
	return &stubMovementRepo{
		movements:    make(map[uuid.UUID]*model.Movement),
		storeTenants: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *stubMovementRepo) Create(_ context.Context, m *model.Movement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	cp := *m
	r.movements[m.ID] = &cp
	return nil
}

func (r *stubMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Movement, error) {
	m, ok := r.movements[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *m
	return &cp, nil
}

func (r *stubMovementRepo) List(_ context.Context, filter dto.MovementFilter) ([]model.Movement, int64, error) {
	var out []model.Movement
	for _, m := range r.movements {
		if filter.TenantID != uuid.Nil && r.storeTenants[m.StoreID] != filter.TenantID {
			continue
		}
		if filter.StoreID != nil && m.StoreID != *filter.StoreID {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (r *stubMovementRepo) Update(_ context.Context, m *model.Movement) error {
	cp := *m
	r.movements[m.ID] = &cp
	return nil
}

func (r *stubMovementRepo) ClaimPending(_ context.Context, limit int) ([]model.Movement, error) {
	var out []model.Movement
	for _, m := range r.movements {
		if len(out) == limit {
			break
		}
		if m.Status == model.MovementPending {
			m.Status = model.MovementProcessing
			now := time.Now()
			m.LastAttemptAt = &now
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *stubMovementRepo) ResetStale(_ context.Context, olderThan time.Duration) (int64, error) {
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

func (r *stubMovementRepo) CountByStatus(_ context.Context, storeID uuid.UUID) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, m := range r.movements {
		if m.StoreID == storeID {
			out[m.Status]++
		}
	}
	return out, nil
}

// ── Tests ────────────────────────────────────────────────────────────────────

func newMovementFixture() (MovementService, *stubMovementRepo, *model.Store, uuid.UUID) {
	repo := newStubMovementRepo()
	storeRepo := newStubStoreRepo()
	tenantID := uuid.New()
	store := &model.Store{ID: uuid.New(), TenantID: tenantID, IsActive: true}
	storeRepo.stores[store.ID] = store
	repo.storeTenants[store.ID] = tenantID
	return NewMovementService(repo, storeRepo, 3), repo, store, tenantID
}

func TestEnqueueOrderEventCreatesOneMovementPerLine(t *testing.T) {
	svc, repo, store, _ := newMovementFixture()

	event := dto.WebhookEvent{
		EventID:   "evt-1",
		OrderID:   "1001",
		EventType: "order",
		Lines: []dto.OrderLine{
			{SKU: "A", Quantity: dec(2)},
			{SKU: "B", Quantity: dec(1)},
			{SKU: "", Quantity: dec(4)}, // no SKU mapping, skipped
		},
	}
	created, err := svc.EnqueueOrderEvent(context.Background(), store, event)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Len(t, repo.movements, 2)

	for _, m := range created {
		assert.Equal(t, model.MovementEgreso, m.MovementType)
		assert.Equal(t, model.MovementPending, m.Status)
		assert.Equal(t, 3, m.MaxAttempts)
		assert.Equal(t, "1001", m.OrderID)
	}
}

func TestEnqueueRefundCreatesIngreso(t *testing.T) {
	svc, _, store, _ := newMovementFixture()

	created, err := svc.EnqueueOrderEvent(context.Background(), store, dto.WebhookEvent{
		OrderID:   "1001",
		EventType: "refund",
		Lines:     []dto.OrderLine{{SKU: "A", Quantity: dec(1)}},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, model.MovementIngreso, created[0].MovementType)
}

func TestRetryResetsAttemptBudget(t *testing.T) {
	svc, repo, store, tenantID := newMovementFixture()

	msg := "erp down"
	m := &model.Movement{
		StoreID: store.ID, OrderID: "1001", SKU: "A", Quantity: dec(1),
		MovementType: model.MovementEgreso, EventType: "order",
		Status: model.MovementFailed, Attempts: 3, MaxAttempts: 3, ErrorMessage: &msg,
	}
	require.NoError(t, repo.Create(context.Background(), m))

	retried, err := svc.Retry(context.Background(), tenantID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MovementPending, retried.Status)
	assert.Equal(t, 0, retried.Attempts)
}

func TestRetryRejectsNonFailedMovement(t *testing.T) {
	svc, repo, store, tenantID := newMovementFixture()

	m := &model.Movement{StoreID: store.ID, SKU: "A", Quantity: dec(1), Status: model.MovementCompleted}
	require.NoError(t, repo.Create(context.Background(), m))

	_, err := svc.Retry(context.Background(), tenantID, m.ID)
	assert.ErrorIs(t, err, ErrMovementNotFailed)
}

func TestListWithoutStoreFilterIsTenantScoped(t *testing.T) {
	svc, repo, store, tenantID := newMovementFixture()

	otherTenant := uuid.New()
	otherStore := uuid.New()
	repo.storeTenants[otherStore] = otherTenant

	mine := &model.Movement{StoreID: store.ID, SKU: "A", Quantity: dec(1), Status: model.MovementPending}
	require.NoError(t, repo.Create(context.Background(), mine))
	theirs := &model.Movement{StoreID: otherStore, SKU: "SECRET", Quantity: dec(1), Status: model.MovementPending}
	require.NoError(t, repo.Create(context.Background(), theirs))

	listed, total, err := svc.List(context.Background(), tenantID, dto.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "A", listed[0].SKU)

	// The other tenant only sees their own queue.
	listed, _, err = svc.List(context.Background(), otherTenant, dto.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "SECRET", listed[0].SKU)
}

func TestMovementAccessIsTenantScoped(t *testing.T) {
	svc, repo, store, _ := newMovementFixture()

	m := &model.Movement{StoreID: store.ID, SKU: "A", Quantity: dec(1), Status: model.MovementFailed}
	require.NoError(t, repo.Create(context.Background(), m))

	_, err := svc.Get(context.Background(), uuid.New(), m.ID)
	assert.ErrorIs(t, err, ErrMovementNotFound)

	_, err = svc.Retry(context.Background(), uuid.New(), m.ID)
	assert.ErrorIs(t, err, ErrMovementNotFound)
}
