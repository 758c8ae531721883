package models

import (
	"time"

	"github.com/google/uuid"
)

// DowntimeEntry records unplanned downtime minutes against a shift.
type DowntimeEntry struct {
	ID              uuid.UUID `json:"id"`
	ClientID        uuid.UUID `json:"client_id"`
	ShiftID         uuid.UUID `json:"shift_id"`
	EntryDate       time.Time `json:"entry_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
	CreatedBy       uuid.UUID `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
