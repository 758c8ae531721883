package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsline-io/opsline-engine/pkg/kpi"
)

// Shift represents a client's recurring work shift. Start and end are wall
// clock times in "HH:MM" form; a shift whose end is at or before its start
// crosses midnight.
type Shift struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"client_id"`
	Name      string    `json:"name"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScheduledHours returns the shift length in hours, accounting for overnight
// shifts (22:00-06:00 is 8 hours, not -16).
func (s *Shift) ScheduledHours() (float64, error) {
	return kpi.ShiftHours(s.StartTime, s.EndTime)
}
