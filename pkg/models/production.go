package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductionEntry records one shift's production output for a product.
// IdealCycleTime is hours per unit; when nil at entry time the calculation
// layer infers one from the product's history and sets CycleTimeInferred.
type ProductionEntry struct {
	ID                uuid.UUID  `json:"id"`
	ClientID          uuid.UUID  `json:"client_id"`
	ShiftID           uuid.UUID  `json:"shift_id"`
	WorkOrderID       *uuid.UUID `json:"work_order_id,omitempty"`
	ProductCode       string     `json:"product_code"`
	EntryDate         time.Time  `json:"entry_date"`
	UnitsProduced     int        `json:"units_produced"`
	EmployeesAssigned int        `json:"employees_assigned"`
	RunTimeHours      float64    `json:"run_time_hours"`
	IdealCycleTime    *float64   `json:"ideal_cycle_time,omitempty"`
	CycleTimeInferred bool       `json:"cycle_time_inferred"`
	CreatedBy         uuid.UUID  `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
