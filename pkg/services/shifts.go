package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/kpi"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// ShiftService defines the interface for shift operations.
type ShiftService interface {
	Create(ctx context.Context, shift *models.Shift) error
	Get(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Shift, error)
	Update(ctx context.Context, shift *models.Shift) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// shiftService implements ShiftService.
type shiftService struct {
	shiftRepo repositories.ShiftRepository
	logger    *zap.Logger
}

// NewShiftService creates a new shift service with dependencies.
func NewShiftService(shiftRepo repositories.ShiftRepository, logger *zap.Logger) ShiftService {
	return &shiftService{
		shiftRepo: shiftRepo,
		logger:    logger,
	}
}

// Create registers a shift for a client.
func (s *shiftService) Create(ctx context.Context, shift *models.Shift) error {
	if err := validateShift(shift); err != nil {
		return err
	}
	shift.Active = true
	return s.shiftRepo.Create(ctx, shift)
}

// Get retrieves a shift by ID.
func (s *shiftService) Get(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return s.shiftRepo.Get(ctx, id)
}

// ListByClient retrieves a client's shifts, deactivated ones included.
func (s *shiftService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.Shift, error) {
	return s.shiftRepo.ListByClient(ctx, clientID)
}

// Update updates a shift's name and times.
func (s *shiftService) Update(ctx context.Context, shift *models.Shift) error {
	if err := validateShift(shift); err != nil {
		return err
	}
	return s.shiftRepo.Update(ctx, shift)
}

// Deactivate retires a shift. Historical entries keep referencing it and its
// hours keep counting in calculations.
func (s *shiftService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.shiftRepo.Deactivate(ctx, id)
}

// validateShift checks the shift's fields, including that its times parse as
// HH:MM wall clock values.
func validateShift(shift *models.Shift) error {
	if shift.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if shift.Name == "" {
		return fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	if _, err := kpi.ShiftHours(shift.StartTime, shift.EndTime); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	return nil
}

// Ensure shiftService implements ShiftService at compile time.
var _ ShiftService = (*shiftService)(nil)
