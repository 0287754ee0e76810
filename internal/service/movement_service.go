package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stocklink/internal/dto"
	"stocklink/internal/model"
	"stocklink/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

var (
	ErrMovementNotFound  = errors.New("movement not found")
	ErrMovementNotFailed = errors.New("only failed movements can be retried")
)

// MovementService owns the write side of the push queue: webhook ingestion
// creates movements, operators retry failed ones. Status transitions during
// draining belong to the worker, not here.
type MovementService interface {
	// EnqueueOrderEvent creates one movement per SKU line of a deduplicated
	// webhook event. The queue itself does not deduplicate - the webhook
	// boundary is responsible for that.
	EnqueueOrderEvent(ctx context.Context, store *model.Store, event dto.WebhookEvent) ([]model.Movement, error)
	List(ctx context.Context, tenantID uuid.UUID, filter dto.MovementFilter) ([]model.Movement, int64, error)
	Get(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*model.Movement, error)
	// Retry re-queues a terminally failed movement. Attempts reset to zero:
	// a manual retry is operator-confirmed intent to try fresh, not a
	// continuation of the exhausted budget.
	Retry(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*model.Movement, error)
}

type movementService struct {
	repo        repository.MovementRepository
	storeRepo   repository.StoreRepository
	maxAttempts int
}

func NewMovementService(repo repository.MovementRepository, storeRepo repository.StoreRepository, maxAttempts int) MovementService {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &movementService{repo: repo, storeRepo: storeRepo, maxAttempts: maxAttempts}
}

func (s *movementService) EnqueueOrderEvent(ctx context.Context, store *model.Store, event dto.WebhookEvent) ([]model.Movement, error) {
	movementType := model.MovementEgreso
	if event.EventType == "refund" {
		movementType = model.MovementIngreso
	}

	meta, _ := json.Marshal(map[string]string{"event_id": event.EventID})

	created := make([]model.Movement, 0, len(event.Lines))
	for _, line := range event.Lines {
		if line.SKU == "" {
			log.Warn().
				Str("order_id", event.OrderID).
				Str("store_id", store.ID.String()).
				Msg("movement_queue: order line without SKU skipped")
			continue
		}
		m := model.Movement{
			StoreID:      store.ID,
			OrderID:      event.OrderID,
			SKU:          line.SKU,
			Quantity:     line.Quantity,
			MovementType: movementType,
			EventType:    event.EventType,
			Status:       model.MovementPending,
			MaxAttempts:  s.maxAttempts,
			Metadata:     datatypes.JSON(meta),
		}
		if err := s.repo.Create(ctx, &m); err != nil {
			return created, fmt.Errorf("movement_queue: enqueue %s/%s: %w", event.OrderID, line.SKU, err)
		}
		created = append(created, m)
	}

	log.Info().
		Str("order_id", event.OrderID).
		Str("store_id", store.ID.String()).
		Str("type", movementType).
		Int("movements", len(created)).
		Msg("movement_queue: event enqueued")
	return created, nil
}

func (s *movementService) List(ctx context.Context, tenantID uuid.UUID, filter dto.MovementFilter) ([]model.Movement, int64, error) {
	if filter.StoreID != nil {
		// scope check: the store must belong to the tenant
		if _, err := s.storeRepo.FindByTenant(ctx, tenantID, *filter.StoreID); err != nil {
			return nil, 0, ErrMovementNotFound
		}
	}
	// The unfiltered path is tenant-scoped too: the repository joins the
	// tenant's stores, so one tenant never sees another's queue.
	filter.TenantID = tenantID
	return s.repo.List(ctx, filter)
}

func (s *movementService) Get(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*model.Movement, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ErrMovementNotFound
	}
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, m.StoreID); err != nil {
		return nil, ErrMovementNotFound
	}
	return m, nil
}

func (s *movementService) Retry(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*model.Movement, error) {
	m, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MovementFailed {
		return nil, ErrMovementNotFailed
	}

	m.Status = model.MovementPending
	m.Attempts = 0
	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	log.Info().
		Str("movement_id", m.ID.String()).
		Str("sku", m.SKU).
		Msg("movement_queue: manual retry, movement re-queued")
	return m, nil
}
