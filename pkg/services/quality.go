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

// QualityService defines the interface for quality entry operations.
type QualityService interface {
	Create(ctx context.Context, entry *models.QualityEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.QualityEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.QualityEntry, int, error)
	Update(ctx context.Context, entry *models.QualityEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// qualityService implements QualityService.
type qualityService struct {
	qualityRepo repositories.QualityRepository
	logger      *zap.Logger
}

// NewQualityService creates a new quality entry service with dependencies.
func NewQualityService(qualityRepo repositories.QualityRepository, logger *zap.Logger) QualityService {
	return &qualityService{
		qualityRepo: qualityRepo,
		logger:      logger,
	}
}

// Create records a quality entry.
func (s *qualityService) Create(ctx context.Context, entry *models.QualityEntry) error {
	if err := validateQualityEntry(entry); err != nil {
		return err
	}
	return s.qualityRepo.Create(ctx, entry)
}

// Get retrieves a quality entry by ID.
func (s *qualityService) Get(ctx context.Context, id uuid.UUID) (*models.QualityEntry, error) {
	return s.qualityRepo.Get(ctx, id)
}

// List retrieves quality entries matching the filters within the caller's
// scope.
func (s *qualityService) List(ctx context.Context, filters models.EntryFilters) ([]*models.QualityEntry, int, error) {
	return s.qualityRepo.List(ctx, filters)
}

// Update updates a quality entry.
func (s *qualityService) Update(ctx context.Context, entry *models.QualityEntry) error {
	if err := validateQualityEntry(entry); err != nil {
		return err
	}
	return s.qualityRepo.Update(ctx, entry)
}

// Delete removes a quality entry.
func (s *qualityService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.qualityRepo.Delete(ctx, id)
}

// validateQualityEntry checks entry bounds before they reach the database.
func validateQualityEntry(entry *models.QualityEntry) error {
	if entry.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if entry.ProductCode == "" {
		return fmt.Errorf("%w: product_code is required", apperrors.ErrValidation)
	}
	if entry.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry_date is required", apperrors.ErrValidation)
	}
	if entry.StepSequence < 1 {
		return fmt.Errorf("%w: step_sequence must be at least 1", apperrors.ErrValidation)
	}
	if entry.UnitsInspected < 0 {
		return fmt.Errorf("%w: units_inspected cannot be negative", apperrors.ErrValidation)
	}
	if entry.UnitsDefective < 0 {
		return fmt.Errorf("%w: units_defective cannot be negative", apperrors.ErrValidation)
	}
	if entry.UnitsDefective > entry.UnitsInspected {
		return fmt.Errorf("%w: units_defective cannot exceed units_inspected", apperrors.ErrValidation)
	}
	if entry.DefectCount < 0 {
		return fmt.Errorf("%w: defect_count cannot be negative", apperrors.ErrValidation)
	}
	if entry.OpportunitiesPerUnit < 0 {
		return fmt.Errorf("%w: opportunities_per_unit cannot be negative", apperrors.ErrValidation)
	}
	return nil
}

// Ensure qualityService implements QualityService at compile time.
var _ QualityService = (*qualityService)(nil)
