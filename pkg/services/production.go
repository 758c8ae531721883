package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
	"github.com/opsline-io/opsline-engine/pkg/repositories"
)

// ProductionService defines the interface for production entry operations.
type ProductionService interface {
	Create(ctx context.Context, entry *models.ProductionEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProductionEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.ProductionEntry, int, error)
	Update(ctx context.Context, entry *models.ProductionEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// productionService implements ProductionService.
type productionService struct {
	productionRepo repositories.ProductionRepository
	shiftRepo      repositories.ShiftRepository
	estimator      CycleTimeEstimator
	logger         *zap.Logger
}

// NewProductionService creates a new production entry service with
// dependencies.
func NewProductionService(
	productionRepo repositories.ProductionRepository,
	shiftRepo repositories.ShiftRepository,
	estimator CycleTimeEstimator,
	logger *zap.Logger,
) ProductionService {
	return &productionService{
		productionRepo: productionRepo,
		shiftRepo:      shiftRepo,
		estimator:      estimator,
		logger:         logger,
	}
}

// Create records a production entry. A missing ideal cycle time is inferred
// from the product's history when any exists; otherwise the entry is stored
// without one and calculations infer at read time.
func (s *productionService) Create(ctx context.Context, entry *models.ProductionEntry) error {
	if err := validateProductionEntry(entry); err != nil {
		return err
	}
	if err := requireClientShift(ctx, s.shiftRepo, entry.ClientID, entry.ShiftID); err != nil {
		return err
	}
	if err := s.settleCycleTime(ctx, entry); err != nil {
		return err
	}
	return s.productionRepo.Create(ctx, entry)
}

// Get retrieves a production entry by ID.
func (s *productionService) Get(ctx context.Context, id uuid.UUID) (*models.ProductionEntry, error) {
	return s.productionRepo.Get(ctx, id)
}

// List retrieves production entries matching the filters within the caller's
// scope.
func (s *productionService) List(ctx context.Context, filters models.EntryFilters) ([]*models.ProductionEntry, int, error) {
	return s.productionRepo.List(ctx, filters)
}

// Update updates a production entry.
func (s *productionService) Update(ctx context.Context, entry *models.ProductionEntry) error {
	if err := validateProductionEntry(entry); err != nil {
		return err
	}
	if err := requireClientShift(ctx, s.shiftRepo, entry.ClientID, entry.ShiftID); err != nil {
		return err
	}
	if err := s.settleCycleTime(ctx, entry); err != nil {
		return err
	}
	return s.productionRepo.Update(ctx, entry)
}

// Delete removes a production entry.
func (s *productionService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.productionRepo.Delete(ctx, id)
}

// settleCycleTime owns the inferred flag. A caller-provided cycle time is a
// recorded value; a missing one is estimated from history, and left empty
// when the product has no history yet.
func (s *productionService) settleCycleTime(ctx context.Context, entry *models.ProductionEntry) error {
	if entry.IdealCycleTime != nil {
		entry.CycleTimeInferred = false
		return nil
	}

	ct, err := s.estimator.Estimate(ctx, entry.ClientID, entry.ProductCode)
	switch {
	case err == nil:
		entry.IdealCycleTime = &ct
		entry.CycleTimeInferred = true
	case errors.Is(err, apperrors.ErrNoCycleTimeHistory):
		entry.CycleTimeInferred = false
		s.logger.Debug("No cycle time history to infer from",
			zap.String("client_id", entry.ClientID.String()),
			zap.String("product_code", entry.ProductCode))
	default:
		return err
	}
	return nil
}

// validateProductionEntry checks entry bounds before they reach the
// database.
func validateProductionEntry(entry *models.ProductionEntry) error {
	if entry.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if entry.ShiftID == uuid.Nil {
		return fmt.Errorf("%w: shift_id is required", apperrors.ErrValidation)
	}
	if entry.ProductCode == "" {
		return fmt.Errorf("%w: product_code is required", apperrors.ErrValidation)
	}
	if entry.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry_date is required", apperrors.ErrValidation)
	}
	if entry.UnitsProduced < 0 {
		return fmt.Errorf("%w: units_produced cannot be negative", apperrors.ErrValidation)
	}
	if entry.EmployeesAssigned < 1 {
		return fmt.Errorf("%w: employees_assigned must be at least 1", apperrors.ErrValidation)
	}
	if entry.RunTimeHours <= 0 || entry.RunTimeHours > 24 {
		return fmt.Errorf("%w: run_time_hours must be greater than 0 and at most 24", apperrors.ErrValidation)
	}
	if entry.IdealCycleTime != nil && *entry.IdealCycleTime <= 0 {
		return fmt.Errorf("%w: ideal_cycle_time must be positive", apperrors.ErrValidation)
	}
	return nil
}

// requireClientShift verifies the shift exists, is in scope, and belongs to
// the given client.
func requireClientShift(ctx context.Context, shiftRepo repositories.ShiftRepository, clientID, shiftID uuid.UUID) error {
	shift, err := shiftRepo.Get(ctx, shiftID)
	if err != nil {
		return err
	}
	if shift.ClientID != clientID {
		return fmt.Errorf("%w: shift %s belongs to a different client", apperrors.ErrValidation, shiftID)
	}
	return nil
}

// Ensure productionService implements ProductionService at compile time.
var _ ProductionService = (*productionService)(nil)
