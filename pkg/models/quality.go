package models

import (
	"time"

	"github.com/google/uuid"
)

// QualityEntry records an inspection step's results for a product on a date.
// StepSequence orders the steps of a product's process; rolled throughput
// yield multiplies step yields in that order.
type QualityEntry struct {
	ID                   uuid.UUID `json:"id"`
	ClientID             uuid.UUID `json:"client_id"`
	EntryDate            time.Time `json:"entry_date"`
	ProductCode          string    `json:"product_code"`
	StepSequence         int       `json:"step_sequence"`
	StepName             string    `json:"step_name"`
	UnitsInspected       int       `json:"units_inspected"`
	UnitsDefective       int       `json:"units_defective"`
	DefectCount          int       `json:"defect_count"`
	OpportunitiesPerUnit int       `json:"opportunities_per_unit"`
	CreatedBy            uuid.UUID `json:"created_by"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
