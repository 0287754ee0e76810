package repository

import (
	"context"

	"stocklink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UnmappedSkuRepository interface {
	// RecordMiss upserts on (storeID, sku): first miss inserts with
	// occurrences=1, repeat misses increment the counter and re-open a
	// previously resolved row.
	RecordMiss(ctx context.Context, storeID uuid.UUID, sku, productName string) error
	ListByStore(ctx context.Context, storeID uuid.UUID, includeResolved bool) ([]model.UnmappedSku, error)
	UnresolvedSKUs(ctx context.Context, storeID uuid.UUID) (map[string]bool, error)
	MarkResolved(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type unmappedSkuRepo struct{ db *gorm.DB }

func NewUnmappedSkuRepository(db *gorm.DB) UnmappedSkuRepository {
	return &unmappedSkuRepo{db: db}
}

func (r *unmappedSkuRepo) RecordMiss(ctx context.Context, storeID uuid.UUID, sku, productName string) error {
	row := model.UnmappedSku{StoreID: storeID, SKU: sku, ProductName: productName, Occurrences: 1}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "sku"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"occurrences":  gorm.Expr("unmapped_skus.occurrences + 1"),
				"product_name": productName,
				"resolved":     false,
			}),
		}).
		Create(&row).Error
}

func (r *unmappedSkuRepo) ListByStore(ctx context.Context, storeID uuid.UUID, includeResolved bool) ([]model.UnmappedSku, error) {
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID)
	if !includeResolved {
		q = q.Where("resolved = false")
	}
	var rows []model.UnmappedSku
	err := q.Order("occurrences DESC").Find(&rows).Error
	return rows, err
}

func (r *unmappedSkuRepo) UnresolvedSKUs(ctx context.Context, storeID uuid.UUID) (map[string]bool, error) {
	var skus []string
	err := r.db.WithContext(ctx).Model(&model.UnmappedSku{}).
		Where("store_id = ? AND resolved = false", storeID).
		Pluck("sku", &skus).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(skus))
	for _, s := range skus {
		out[s] = true
	}
	return out, nil
}

func (r *unmappedSkuRepo) MarkResolved(ctx context.Context, storeID uuid.UUID, ids []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.UnmappedSku{}).
		Where("store_id = ? AND id IN ?", storeID, ids).
		Update("resolved", true)
	return res.RowsAffected, res.Error
}
