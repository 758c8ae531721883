package services

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline-io/opsline-engine/pkg/apperrors"
	"github.com/opsline-io/opsline-engine/pkg/models"
)

func newTestDowntimeService(downtime *mockDowntimeRepository, shifts *mockShiftRepository) DowntimeService {
	return NewDowntimeService(downtime, shifts, zap.NewNop())
}

func TestDowntimeService_Create(t *testing.T) {
	clientID := uuid.New()
	shiftID := uuid.New()
	repo := &mockDowntimeRepository{}
	shifts := &mockShiftRepository{shifts: []*models.Shift{
		{ID: shiftID, ClientID: clientID, Name: "Day", StartTime: "06:00", EndTime: "14:00", Active: true},
	}}
	service := newTestDowntimeService(repo, shifts)

	entry := &models.DowntimeEntry{
		ClientID:        clientID,
		ShiftID:         shiftID,
		EntryDate:       day(3),
		DurationMinutes: 45,
		Reason:          "die change",
	}
	if err := service.Create(leaderContext(clientID), entry); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if repo.capturedEntry == nil {
		t.Fatal("expected entry to reach the repository")
	}
}

func TestDowntimeService_Create_ShiftClientMismatch(t *testing.T) {
	clientID := uuid.New()
	shiftID := uuid.New()
	shifts := &mockShiftRepository{shifts: []*models.Shift{
		{ID: shiftID, ClientID: uuid.New(), Name: "Day", StartTime: "06:00", EndTime: "14:00", Active: true},
	}}
	service := newTestDowntimeService(&mockDowntimeRepository{}, shifts)

	entry := &models.DowntimeEntry{
		ClientID:        clientID,
		ShiftID:         shiftID,
		EntryDate:       day(3),
		DurationMinutes: 45,
	}
	err := service.Create(leaderContext(clientID), entry)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected ErrValidation for a shift of another client, got %v", err)
	}
}
