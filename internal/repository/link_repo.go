package repository

import (
	"context"

	"stocklink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LinkRepository interface {
	Create(ctx context.Context, l *model.StoreIntegrationLink) error
	FindByPair(ctx context.Context, storeID, integrationID uuid.UUID) (*model.StoreIntegrationLink, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreIntegrationLink, error)
	// ListActivePull returns every active link with scheduled pull enabled,
	// preloaded with its store and integration - the scheduler's working set.
	ListActivePull(ctx context.Context) ([]model.StoreIntegrationLink, error)
	Update(ctx context.Context, l *model.StoreIntegrationLink) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type linkRepo struct{ db *gorm.DB }

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepo{db: db}
}

func (r *linkRepo) Create(ctx context.Context, l *model.StoreIntegrationLink) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *linkRepo) FindByPair(ctx context.Context, storeID, integrationID uuid.UUID) (*model.StoreIntegrationLink, error) {
	var l model.StoreIntegrationLink
	err := r.db.WithContext(ctx).
		Preload("Store").
		Preload("Integration").
		Where("store_id = ? AND integration_id = ?", storeID, integrationID).
		First(&l).Error
	return &l, err
}

func (r *linkRepo) ListByStore(ctx context.Context, storeID uuid.UUID) ([]model.StoreIntegrationLink, error) {
	var list []model.StoreIntegrationLink
	err := r.db.WithContext(ctx).
		Preload("Integration").
		Where("store_id = ?", storeID).
		Find(&list).Error
	return list, err
}

func (r *linkRepo) ListActivePull(ctx context.Context) ([]model.StoreIntegrationLink, error) {
	var list []model.StoreIntegrationLink
	err := r.db.WithContext(ctx).
		Preload("Store").
		Preload("Integration").
		Where("is_active = true").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	out := list[:0]
	for _, l := range list {
		if l.SyncConfig.Pull.Enabled {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *linkRepo) Update(ctx context.Context, l *model.StoreIntegrationLink) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *linkRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.StoreIntegrationLink{}, id).Error
}
