package service

import (
	"context"
	"errors"
	"time"

	"stocklink/internal/dto"
	"stocklink/internal/model"
	"stocklink/internal/platform"
	"stocklink/internal/repository"

	"github.com/google/uuid"
)

var ErrIntegrationNotFound = errors.New("integration not found")

// IntegrationService manages per-tenant ERP credentials and exposes the
// connection probes the dashboard uses before enabling a sync.
type IntegrationService interface {
	Create(ctx context.Context, tenantID uuid.UUID, req dto.CreateIntegrationRequest) (*model.Integration, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Integration, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]model.Integration, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, req dto.UpdateIntegrationRequest) (*model.Integration, error)
	Deactivate(ctx context.Context, tenantID, id uuid.UUID) error
	TestConnection(ctx context.Context, tenantID, id uuid.UUID) (*dto.TestConnectionResponse, error)
	ListWarehouses(ctx context.Context, tenantID, id uuid.UUID) ([]platform.Warehouse, error)
}

type integrationService struct {
	repo       repository.IntegrationRepository
	erpFactory platform.ERPFactory
}

func NewIntegrationService(repo repository.IntegrationRepository, erpFactory platform.ERPFactory) IntegrationService {
	return &integrationService{repo: repo, erpFactory: erpFactory}
}

func settingsFromRequest(req *dto.ContificoSettingsRequest) model.IntegrationSettings {
	return model.IntegrationSettings{
		Contifico: &model.ContificoSettings{
			Env: req.Env,
			APIKeys: model.APIKeys{
				Test: req.APIKeyTest,
				Prod: req.APIKeyProd,
			},
			WarehousePrimary: req.WarehousePrimary,
		},
	}
}

func (s *integrationService) Create(ctx context.Context, tenantID uuid.UUID, req dto.CreateIntegrationRequest) (*model.Integration, error) {
	settings := settingsFromRequest(req.Contifico)
	if err := settings.Validate(req.Type); err != nil {
		return nil, err
	}
	integration := &model.Integration{
		TenantID: tenantID,
		Name:     req.Name,
		Type:     req.Type,
		Settings: settings,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

func (s *integrationService) Get(ctx context.Context, tenantID, id uuid.UUID) (*model.Integration, error) {
	integration, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, ErrIntegrationNotFound
	}
	return integration, nil
}

func (s *integrationService) List(ctx context.Context, tenantID uuid.UUID) ([]model.Integration, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

func (s *integrationService) Update(ctx context.Context, tenantID, id uuid.UUID, req dto.UpdateIntegrationRequest) (*model.Integration, error) {
	integration, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, ErrIntegrationNotFound
	}

	settings := settingsFromRequest(req.Contifico)
	// Keys are write-only on the API: blank fields keep the stored value.
	if settings.Contifico.APIKeys.Test == "" && integration.Settings.Contifico != nil {
		settings.Contifico.APIKeys.Test = integration.Settings.Contifico.APIKeys.Test
	}
	if settings.Contifico.APIKeys.Prod == "" && integration.Settings.Contifico != nil {
		settings.Contifico.APIKeys.Prod = integration.Settings.Contifico.APIKeys.Prod
	}
	if err := settings.Validate(integration.Type); err != nil {
		return nil, err
	}

	integration.Name = req.Name
	integration.Settings = settings
	if req.IsActive != nil {
		integration.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

func (s *integrationService) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		return ErrIntegrationNotFound
	}
	return s.repo.Deactivate(ctx, tenantID, id)
}

func (s *integrationService) TestConnection(ctx context.Context, tenantID, id uuid.UUID) (*dto.TestConnectionResponse, error) {
	integration, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, ErrIntegrationNotFound
	}
	client, err := s.erpFactory(integration)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.TestConnection(probeCtx); err != nil {
		return &dto.TestConnectionResponse{Success: false, Details: err.Error()}, nil
	}
	return &dto.TestConnectionResponse{Success: true, Details: "connection ok"}, nil
}

func (s *integrationService) ListWarehouses(ctx context.Context, tenantID, id uuid.UUID) ([]platform.Warehouse, error) {
	integration, err := s.repo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, ErrIntegrationNotFound
	}
	client, err := s.erpFactory(integration)
	if err != nil {
		return nil, err
	}
	return client.ListWarehouses(ctx)
}
