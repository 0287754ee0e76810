package service

import (
	"context"
	"errors"

	"stocklink/internal/model"
	"stocklink/internal/repository"

	"github.com/google/uuid"
)

var ErrStoreNotFound = errors.New("store not found")

// StoreService is the read surface over stores plus the unmapped-SKU report.
// Stores themselves are provisioned out of band, so there is no write path
// beyond resolving unmapped rows.
type StoreService interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Store, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]model.Store, error)
	ListUnmapped(ctx context.Context, tenantID, storeID uuid.UUID, includeResolved bool) ([]model.UnmappedSku, error)
	ResolveUnmapped(ctx context.Context, tenantID, storeID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type storeService struct {
	storeRepo    repository.StoreRepository
	unmappedRepo repository.UnmappedSkuRepository
}

func NewStoreService(storeRepo repository.StoreRepository, unmappedRepo repository.UnmappedSkuRepository) StoreService {
	return &storeService{storeRepo: storeRepo, unmappedRepo: unmappedRepo}
}

func (s *storeService) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Store, error) {
	store, err := s.storeRepo.FindByTenant(ctx, tenantID, id)
	if err != nil {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

func (s *storeService) List(ctx context.Context, tenantID uuid.UUID) ([]model.Store, error) {
	return s.storeRepo.ListByTenant(ctx, tenantID)
}

func (s *storeService) ListUnmapped(ctx context.Context, tenantID, storeID uuid.UUID, includeResolved bool) ([]model.UnmappedSku, error) {
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID); err != nil {
		return nil, ErrStoreNotFound
	}
	return s.unmappedRepo.ListByStore(ctx, storeID, includeResolved)
}

func (s *storeService) ResolveUnmapped(ctx context.Context, tenantID, storeID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if _, err := s.storeRepo.FindByTenant(ctx, tenantID, storeID); err != nil {
		return 0, ErrStoreNotFound
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.unmappedRepo.MarkResolved(ctx, storeID, ids)
}
