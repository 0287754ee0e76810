package repository

import (
	"context"

	"stocklink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StoreRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Store, error)
	FindByTenant(ctx context.Context, tenantID, id uuid.UUID) (*model.Store, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Store, error)
}

type storeRepo struct{ db *gorm.DB }

func NewStoreRepository(db *gorm.DB) StoreRepository {
	return &storeRepo{db: db}
}

func (r *storeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).First(&s, id).Error
	return &s, err
}

func (r *storeRepo) FindByTenant(ctx context.Context, tenantID, id uuid.UUID) (*model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&s, id).Error
	return &s, err
}

func (r *storeRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Store, error) {
	var list []model.Store
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}
