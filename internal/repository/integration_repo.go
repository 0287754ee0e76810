package repository

import (
	"context"

	"stocklink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IntegrationRepository interface {
	Create(ctx context.Context, i *model.Integration) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Integration, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Integration, error)
	Update(ctx context.Context, i *model.Integration) error
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) error
}

type integrationRepo struct{ db *gorm.DB }

func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepo{db: db}
}

func (r *integrationRepo) Create(ctx context.Context, i *model.Integration) error {
	return r.db.WithContext(ctx).Create(i).Error
}

func (r *integrationRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Integration, error) {
	var i model.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&i, id).Error
	return &i, err
}

func (r *integrationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.Integration, error) {
	var list []model.Integration
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *integrationRepo) Update(ctx context.Context, i *model.Integration) error {
	return r.db.WithContext(ctx).Save(i).Error
}

func (r *integrationRepo) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Integration{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("is_active", false).Error
}
