package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// ClientService defines the interface for client configuration operations.
type ClientService interface {
	// Provision creates or updates a client record. Called by opsline-central
	// when a tenant is onboarded; idempotent.
	Provision(ctx context.Context, client *models.Client) error
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// clientService implements ClientService.
type clientService struct {
	clientRepo repositories.ClientRepository
	logger     *zap.Logger
}

// NewClientService creates a new client service with dependencies.
func NewClientService(clientRepo repositories.ClientRepository, logger *zap.Logger) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

// Provision creates or updates a client record.
func (s *clientService) Provision(ctx context.Context, client *models.Client) error {
	if err := validateClient(client); err != nil {
		return err
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		return err
	}

	s.logger.Info("Provisioned client",
		zap.String("client_id", client.ID.String()),
		zap.String("code", client.Code))
	return nil
}

// Get retrieves a client by ID.
func (s *clientService) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return s.clientRepo.Get(ctx, id)
}

// List retrieves the clients visible to the caller's scope.
func (s *clientService) List(ctx context.Context) ([]*models.Client, error) {
	return s.clientRepo.List(ctx)
}

// Update updates a client's configuration.
func (s *clientService) Update(ctx context.Context, client *models.Client) error {
	if err := validateClient(client); err != nil {
		return err
	}
	return s.clientRepo.Update(ctx, client)
}

// Deactivate soft-deletes a client. Historical entries keep their client
// reference for reporting.
func (s *clientService) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.clientRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Deactivated client", zap.String("client_id", id.String()))
	return nil
}

// validateClient checks client configuration bounds.
func validateClient(client *models.Client) error {
	if client.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if client.Code == "" {
		return fmt.Errorf("%w: code is required", apperrors.ErrValidation)
	}
	if client.OTDMode != "" && !models.IsValidOTDMode(client.OTDMode) {
		return fmt.Errorf("%w: invalid otd_mode %q", apperrors.ErrValidation, client.OTDMode)
	}
	if client.OTDGraceDays < 0 {
		return fmt.Errorf("%w: otd_grace_days cannot be negative", apperrors.ErrValidation)
	}
	if client.HoldAgingThresholdDays < 0 {
		return fmt.Errorf("%w: hold_aging_threshold_days cannot be negative", apperrors.ErrValidation)
	}
	return nil
}

// Ensure clientService implements ClientService at compile time.
var _ ClientService = (*clientService)(nil)
