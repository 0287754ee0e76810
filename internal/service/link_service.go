package service

import (
	"context"
	"errors"
	"fmt"

	"stocklink/internal/dto"
	"stocklink/internal/model"
	"stocklink/internal/repository"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var ErrLinkNotFound = errors.New("store integration link not found")

// ScheduleNotifier is poked after any link mutation so the pull scheduler can
// rebuild its entries. The worker package implements it; tests pass a no-op.
type ScheduleNotifier interface {
	Rebuild()
}

type NoopNotifier struct{}

func (NoopNotifier) Rebuild() {}

// LinkService manages store↔integration bindings and their sync config.
type LinkService interface {
	Get(ctx context.Context, tenantID, storeID, integrationID uuid.UUID) (*model.StoreIntegrationLink, error)
	ListByStore(ctx context.Context, tenantID, storeID uuid.UUID) ([]model.StoreIntegrationLink, error)
	Upsert(ctx context.Context, tenantID, storeID, integrationID uuid.UUID, req dto.UpsertLinkRequest) (*model.StoreIntegrationLink, error)
	Delete(ctx context.Context, tenantID, storeID, integrationID uuid.UUID) error
}

type linkService struct {
	linkRepo        repository.LinkRepository
	storeRepo       repository.StoreRepository
	integrationRepo repository.IntegrationRepository
	notifier        ScheduleNotifier
	cronParser      cron.Parser
}

func NewLinkService(
	linkRepo repository.LinkRepository,
	storeRepo repository.StoreRepository,
	integrationRepo repository.IntegrationRepository,
	notifier ScheduleNotifier,
) LinkService {
	return &linkService{
		linkRepo:        linkRepo,
		storeRepo:       storeRepo,
		integrationRepo: integrationRepo,
		notifier:        notifier,
		cronParser: cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

func (s *linkService) Get(ctx context.Context, tenantID, storeID, integrationID uuid.UUID) (*model.StoreIntegrationLink, error) {
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID); err != nil {
		return nil, ErrLinkNotFound
	}
	link, err := s.linkRepo.FindByPair(ctx, storeID, integrationID)
	if err != nil {
		return nil, ErrLinkNotFound
	}
	return link, nil
}

func (s *linkService) ListByStore(ctx context.Context, tenantID, storeID uuid.UUID) ([]model.StoreIntegrationLink, error) {
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID); err != nil {
		return nil, ErrLinkNotFound
	}
	return s.linkRepo.ListByStore(ctx, storeID)
}

func (s *linkService) validateSyncConfig(cfg dto.SyncConfigRequest) error {
	if cfg.Pull.Interval == "" {
		return nil
	}
	if _, err := s.cronParser.Parse(cfg.Pull.Interval); err != nil {
		return fmt.Errorf("invalid pull interval %q: %w", cfg.Pull.Interval, err)
	}
	return nil
}

func (s *linkService) Upsert(ctx context.Context, tenantID, storeID, integrationID uuid.UUID, req dto.UpsertLinkRequest) (*model.StoreIntegrationLink, error) {
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID); err != nil {
		return nil, ErrLinkNotFound
	}
	if _, err := s.integrationRepo.FindByID(ctx, tenantID, integrationID); err != nil {
		return nil, ErrIntegrationNotFound
	}
	if err := s.validateSyncConfig(req.SyncConfig); err != nil {
		return nil, err
	}

	syncConfig := model.SyncConfig{
		Pull: model.PullConfig{
			Enabled:   req.SyncConfig.Pull.Enabled,
			Interval:  req.SyncConfig.Pull.Interval,
			Warehouse: req.SyncConfig.Pull.Warehouse,
		},
	}

	link, err := s.linkRepo.FindByPair(ctx, storeID, integrationID)
	if err != nil {
		link = &model.StoreIntegrationLink{
			StoreID:       storeID,
			IntegrationID: integrationID,
			IsActive:      true,
			SyncConfig:    syncConfig,
		}
		if req.IsActive != nil {
			link.IsActive = *req.IsActive
		}
		if err := s.linkRepo.Create(ctx, link); err != nil {
			return nil, err
		}
		s.notifier.Rebuild()
		return link, nil
	}

	link.SyncConfig = syncConfig
	if req.IsActive != nil {
		link.IsActive = *req.IsActive
	}
	if err := s.linkRepo.Update(ctx, link); err != nil {
		return nil, err
	}
	s.notifier.Rebuild()
	return link, nil
}

func (s *linkService) Delete(ctx context.Context, tenantID, storeID, integrationID uuid.UUID) error {
	link, err := s.Get(ctx, tenantID, storeID, integrationID)
	if err != nil {
		return err
	}
	if err := s.linkRepo.Delete(ctx, link.ID); err != nil {
		return err
	}
	s.notifier.Rebuild()
	return nil
}
