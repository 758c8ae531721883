package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceEntry records one employee's scheduled and absent hours for a
// date. EmployeeRef is the client's own employee identifier; the platform
// does not manage shop-floor employees as users.
type AttendanceEntry struct {
	ID             uuid.UUID `json:"id"`
	ClientID       uuid.UUID `json:"client_id"`
	EmployeeRef    string    `json:"employee_ref"`
	EntryDate      time.Time `json:"entry_date"`
	ScheduledHours float64   `json:"scheduled_hours"`
	AbsenceHours   float64   `json:"absence_hours"`
	CreatedBy      uuid.UUID `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
