package service

import (
	"context"
	"errors"
	"testing"

	"stocklink/internal/dto"
	"stocklink/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIntegrationRepo struct {
	integrations map[uuid.UUID]*model.Integration
}

func newStubIntegrationRepo() *stubIntegrationRepo {
	return &stubIntegrationRepo{integrations: make(map[uuid.UUID]*model.Integration)}
}

func (r *stubIntegrationRepo) Create(_ context.Context, i *model.Integration) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	r.integrations[i.ID] = i
	return nil
}

func (r *stubIntegrationRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*model.Integration, error) {
	i, ok := r.integrations[id]
	if !ok || i.TenantID != tenantID {
		return nil, errors.New("record not found")
	}
	return i, nil
}

func (r *stubIntegrationRepo) ListByTenant(_ context.Context, tenantID uuid.UUID) ([]model.Integration, error) {
	var out []model.Integration
	for _, i := range r.integrations {
		if i.TenantID == tenantID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *stubIntegrationRepo) Update(_ context.Context, i *model.Integration) error {
	r.integrations[i.ID] = i
	return nil
}

func (r *stubIntegrationRepo) Deactivate(_ context.Context, tenantID, id uuid.UUID) error {
	i, err := r.FindByID(context.Background(), tenantID, id)
	if err != nil {
		return err
	}
	i.IsActive = false
	return nil
}

type countingNotifier struct{ rebuilds int }

func (n *countingNotifier) Rebuild() { n.rebuilds++ }

func newLinkFixture() (LinkService, *countingNotifier, uuid.UUID, *model.Store, *model.Integration) {
	tenantID := uuid.New()
	storeRepo := newStubStoreRepo()
	integrationRepo := newStubIntegrationRepo()
	linkRepo := newStubLinkRepo()

	store := &model.Store{ID: uuid.New(), TenantID: tenantID, IsActive: true}
	storeRepo.stores[store.ID] = store
	integration := &model.Integration{ID: uuid.New(), TenantID: tenantID, Type: model.IntegrationContifico, IsActive: true}
	integrationRepo.integrations[integration.ID] = integration

	notifier := &countingNotifier{}
	return NewLinkService(linkRepo, storeRepo, integrationRepo, notifier), notifier, tenantID, store, integration
}

func TestUpsertLinkCreatesAndUpdates(t *testing.T) {
	svc, notifier, tenantID, store, integration := newLinkFixture()

	link, err := svc.Upsert(context.Background(), tenantID, store.ID, integration.ID, dto.UpsertLinkRequest{
		SyncConfig: dto.SyncConfigRequest{Pull: dto.PullConfigRequest{Enabled: true, Interval: "@every 10m"}},
	})
	require.NoError(t, err)
	assert.True(t, link.IsActive)
	assert.True(t, link.SyncConfig.Pull.Enabled)
	assert.Equal(t, 1, notifier.rebuilds)

	inactive := false
	link, err = svc.Upsert(context.Background(), tenantID, store.ID, integration.ID, dto.UpsertLinkRequest{
		IsActive:   &inactive,
		SyncConfig: dto.SyncConfigRequest{Pull: dto.PullConfigRequest{Enabled: false}},
	})
	require.NoError(t, err)
	assert.False(t, link.IsActive)
	assert.Equal(t, 2, notifier.rebuilds)
}

func TestUpsertLinkRejectsBadInterval(t *testing.T) {
	svc, notifier, tenantID, store, integration := newLinkFixture()

	_, err := svc.Upsert(context.Background(), tenantID, store.ID, integration.ID, dto.UpsertLinkRequest{
		SyncConfig: dto.SyncConfigRequest{Pull: dto.PullConfigRequest{Enabled: true, Interval: "every ten minutes"}},
	})
	assert.Error(t, err)
	assert.Zero(t, notifier.rebuilds)
}

func TestUpsertLinkRejectsForeignTenant(t *testing.T) {
	svc, _, _, store, integration := newLinkFixture()

	_, err := svc.Upsert(context.Background(), uuid.New(), store.ID, integration.ID, dto.UpsertLinkRequest{})
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestDeleteLinkNotifiesScheduler(t *testing.T) {
	svc, notifier, tenantID, store, integration := newLinkFixture()

	_, err := svc.Upsert(context.Background(), tenantID, store.ID, integration.ID, dto.UpsertLinkRequest{
		SyncConfig: dto.SyncConfigRequest{Pull: dto.PullConfigRequest{Enabled: true}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), tenantID, store.ID, integration.ID))
	assert.Equal(t, 2, notifier.rebuilds)

	_, err = svc.Get(context.Background(), tenantID, store.ID, integration.ID)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}
