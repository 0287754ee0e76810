package repository

import (
	"context"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovementRepository interface {
	Create(ctx context.Context, m *model.Movement) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Movement, error)
	List(ctx context.Context, filter dto.MovementFilter) ([]model.Movement, int64, error)
	Update(ctx context.Context, m *model.Movement) error
	// ClaimPending atomically selects up to limit pending movements (FIFO by
	// creation time) and flips them to "processing". Uses FOR UPDATE SKIP
	// LOCKED so concurrent workers never double-claim a row. Previously
	// attempted movements only become claimable again after an exponential
	// backoff window.
	ClaimPending(ctx context.Context, limit int) ([]model.Movement, error)
	// ResetStale returns movements stuck in "processing" longer than olderThan
	// to "pending". Run at worker startup and periodically - a crash mid-drain
	// must never strand a movement.
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
	CountByStatus(ctx context.Context, storeID uuid.UUID) (map[string]int64, error)
}

type movementRepo struct{ db *gorm.DB }

func NewMovementRepository(db *gorm.DB) MovementRepository {
	return &movementRepo{db: db}
}

func (r *movementRepo) Create(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *movementRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Movement, error) {
	var m model.Movement
	err := r.db.WithContext(ctx).First(&m, id).Error
	return &m, err
}

func (r *movementRepo) List(ctx context.Context, filter dto.MovementFilter) ([]model.Movement, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Movement{})
	if filter.TenantID != uuid.Nil {
		q = q.Joins("JOIN stores ON stores.id = movements.store_id").
			Where("stores.tenant_id = ?", filter.TenantID)
	}
	if filter.StoreID != nil {
		q = q.Where("movements.store_id = ?", *filter.StoreID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset := (page - 1) * limit

	var movements []model.Movement
	err := q.Order("movements.created_at DESC").Offset(offset).Limit(limit).Find(&movements).Error
	return movements, total, err
}

func (r *movementRepo) Update(ctx context.Context, m *model.Movement) error {
	return r.db.WithContext(ctx).Save(m).Error
}

// retryBackoffBase seeds the exponential retry delay: a movement with n
// failed attempts waits base * 2^(n-1) before it can be claimed again.
const retryBackoffBase = 30 * time.Second

func (r *movementRepo) ClaimPending(ctx context.Context, limit int) ([]model.Movement, error) {
	var claimed []model.Movement
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.MovementPending).
			Where(
				"attempts = 0 OR last_attempt_at IS NULL OR last_attempt_at < NOW() - make_interval(secs => ? * power(2, attempts - 1))",
				retryBackoffBase.Seconds(),
			).
			Order("created_at ASC").
			Limit(limit).
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(claimed))
		for i := range claimed {
			ids = append(ids, claimed[i].ID)
		}
		now := time.Now()
		if err := tx.Model(&model.Movement{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"status": model.MovementProcessing, "last_attempt_at": now}).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = model.MovementProcessing
			t := now
			claimed[i].LastAttemptAt = &t
		}
		return nil
	})
	return claimed, err
}

func (r *movementRepo) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := r.db.WithContext(ctx).Model(&model.Movement{}).
		Where("status = ? AND last_attempt_at < ?", model.MovementProcessing, cutoff).
		Update("status", model.MovementPending)
	return res.RowsAffected, res.Error
}

func (r *movementRepo) CountByStatus(ctx context.Context, storeID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Movement{}).
		Select("status, count(*) as n").
		Where("store_id = ?", storeID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
