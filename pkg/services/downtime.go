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

// DowntimeService defines the interface for downtime entry operations.
type DowntimeService interface {
	Create(ctx context.Context, entry *models.DowntimeEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.DowntimeEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.DowntimeEntry, int, error)
	Update(ctx context.Context, entry *models.DowntimeEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// downtimeService implements DowntimeService.
type downtimeService struct {
	downtimeRepo repositories.DowntimeRepository
	shiftRepo    repositories.ShiftRepository
	logger       *zap.Logger
}

// NewDowntimeService creates a new downtime entry service with dependencies.
func NewDowntimeService(downtimeRepo repositories.DowntimeRepository, shiftRepo repositories.ShiftRepository, logger *zap.Logger) DowntimeService {
	return &downtimeService{
		downtimeRepo: downtimeRepo,
		shiftRepo:    shiftRepo,
		logger:       logger,
	}
}

// Create records a downtime entry against a shift.
func (s *downtimeService) Create(ctx context.Context, entry *models.DowntimeEntry) error {
	if err := validateDowntimeEntry(entry); err != nil {
		return err
	}
	if err := requireClientShift(ctx, s.shiftRepo, entry.ClientID, entry.ShiftID); err != nil {
		return err
	}
	return s.downtimeRepo.Create(ctx, entry)
}

// Get retrieves a downtime entry by ID.
func (s *downtimeService) Get(ctx context.Context, id uuid.UUID) (*models.DowntimeEntry, error) {
	return s.downtimeRepo.Get(ctx, id)
}

// List retrieves downtime entries matching the filters within the caller's
// scope.
func (s *downtimeService) List(ctx context.Context, filters models.EntryFilters) ([]*models.DowntimeEntry, int, error) {
	return s.downtimeRepo.List(ctx, filters)
}

// Update updates a downtime entry.
func (s *downtimeService) Update(ctx context.Context, entry *models.DowntimeEntry) error {
	if err := validateDowntimeEntry(entry); err != nil {
		return err
	}
	if err := requireClientShift(ctx, s.shiftRepo, entry.ClientID, entry.ShiftID); err != nil {
		return err
	}
	return s.downtimeRepo.Update(ctx, entry)
}

// Delete removes a downtime entry.
func (s *downtimeService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.downtimeRepo.Delete(ctx, id)
}

// validateDowntimeEntry checks entry bounds before they reach the database.
func validateDowntimeEntry(entry *models.DowntimeEntry) error {
	if entry.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if entry.ShiftID == uuid.Nil {
		return fmt.Errorf("%w: shift_id is required", apperrors.ErrValidation)
	}
	if entry.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry_date is required", apperrors.ErrValidation)
	}
	if entry.DurationMinutes < 0 {
		return fmt.Errorf("%w: duration_minutes cannot be negative", apperrors.ErrValidation)
	}
	return nil
}

// Ensure downtimeService implements DowntimeService at compile time.
var _ DowntimeService = (*downtimeService)(nil)
