package repository

import (
	"context"
	"time"

	"stocklink/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepository interface {
	// Upsert overwrites the snapshot for (storeID, sku); the table keeps only
	// the latest observation per pair.
	Upsert(ctx context.Context, snap *model.StockSnapshot) error
	FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StockSnapshot, error)
	// AdjustERPQuantity shifts the recorded ERP quantity by delta after a
	// movement was applied, without re-reading the ERP.
	AdjustERPQuantity(ctx context.Context, storeID uuid.UUID, sku string, delta decimal.Decimal) error
	// MarkFailed records a failed push attempt so the status projection
	// classifies the SKU as "error". Quantities of an existing snapshot are
	// left untouched.
	MarkFailed(ctx context.Context, storeID uuid.UUID, sku string, cause string) error
}

type snapshotRepo struct{ db *gorm.DB }

func NewSnapshotRepository(db *gorm.DB) SnapshotRepository {
	return &snapshotRepo{db: db}
}

func (r *snapshotRepo) Upsert(ctx context.Context, snap *model.StockSnapshot) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"erp_quantity", "store_quantity", "last_result", "last_error", "last_sync_at",
			}),
		}).
		Create(snap).Error
}

func (r *snapshotRepo) FindByStore(ctx context.Context, storeID uuid.UUID) ([]model.StockSnapshot, error) {
	var snaps []model.StockSnapshot
	err := r.db.WithContext(ctx).Where("store_id = ?", storeID).Find(&snaps).Error
	return snaps, err
}

func (r *snapshotRepo) AdjustERPQuantity(ctx context.Context, storeID uuid.UUID, sku string, delta decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&model.StockSnapshot{}).
		Where("store_id = ? AND sku = ?", storeID, sku).
		Updates(map[string]interface{}{
			"erp_quantity": gorm.Expr("erp_quantity + ?", delta),
			"last_result":  model.SnapshotSuccess,
			"last_error":   nil,
			"last_sync_at": gorm.Expr("now()"),
		}).Error
}

func (r *snapshotRepo) MarkFailed(ctx context.Context, storeID uuid.UUID, sku string, cause string) error {
	snap := &model.StockSnapshot{
		StoreID:    storeID,
		SKU:        sku,
		LastResult: model.SnapshotFailed,
		LastError:  &cause,
		LastSyncAt: time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "store_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_result", "last_error", "last_sync_at",
			}),
		}).
		Create(snap).Error
}
