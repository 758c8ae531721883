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

// AttendanceService defines the interface for attendance entry operations.
type AttendanceService interface {
	Create(ctx context.Context, entry *models.AttendanceEntry) error
	Get(ctx context.Context, id uuid.UUID) (*models.AttendanceEntry, error)
	List(ctx context.Context, filters models.EntryFilters) ([]*models.AttendanceEntry, int, error)
	Update(ctx context.Context, entry *models.AttendanceEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// attendanceService implements AttendanceService.
type attendanceService struct {
	attendanceRepo repositories.AttendanceRepository
	logger         *zap.Logger
}

// NewAttendanceService creates a new attendance entry service with
// dependencies.
func NewAttendanceService(attendanceRepo repositories.AttendanceRepository, logger *zap.Logger) AttendanceService {
	return &attendanceService{
		attendanceRepo: attendanceRepo,
		logger:         logger,
	}
}

// Create records an attendance entry.
func (s *attendanceService) Create(ctx context.Context, entry *models.AttendanceEntry) error {
	if err := validateAttendanceEntry(entry); err != nil {
		return err
	}
	return s.attendanceRepo.Create(ctx, entry)
}

// Get retrieves an attendance entry by ID.
func (s *attendanceService) Get(ctx context.Context, id uuid.UUID) (*models.AttendanceEntry, error) {
	return s.attendanceRepo.Get(ctx, id)
}

// List retrieves attendance entries matching the filters within the caller's
// scope.
func (s *attendanceService) List(ctx context.Context, filters models.EntryFilters) ([]*models.AttendanceEntry, int, error) {
	return s.attendanceRepo.List(ctx, filters)
}

// Update updates an attendance entry.
func (s *attendanceService) Update(ctx context.Context, entry *models.AttendanceEntry) error {
	if err := validateAttendanceEntry(entry); err != nil {
		return err
	}
	return s.attendanceRepo.Update(ctx, entry)
}

// Delete removes an attendance entry.
func (s *attendanceService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.attendanceRepo.Delete(ctx, id)
}

// validateAttendanceEntry checks entry bounds before they reach the
// database.
func validateAttendanceEntry(entry *models.AttendanceEntry) error {
	if entry.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client_id is required", apperrors.ErrValidation)
	}
	if entry.EmployeeRef == "" {
		return fmt.Errorf("%w: employee_ref is required", apperrors.ErrValidation)
	}
	if entry.EntryDate.IsZero() {
		return fmt.Errorf("%w: entry_date is required", apperrors.ErrValidation)
	}
	if entry.ScheduledHours < 0 {
		return fmt.Errorf("%w: scheduled_hours cannot be negative", apperrors.ErrValidation)
	}
	if entry.AbsenceHours < 0 {
		return fmt.Errorf("%w: absence_hours cannot be negative", apperrors.ErrValidation)
	}
	if entry.AbsenceHours > entry.ScheduledHours {
		return fmt.Errorf("%w: absence_hours cannot exceed scheduled_hours", apperrors.ErrValidation)
	}
	return nil
}

// Ensure attendanceService implements AttendanceService at compile time.
var _ AttendanceService = (*attendanceService)(nil)
