package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryFilters narrows list queries over production, quality, attendance and
// downtime entries. Zero values mean "no filter"; client visibility is always
// enforced by the caller's access scope on top of these.
type EntryFilters struct {
	ClientIDs   []uuid.UUID
	ShiftID     *uuid.UUID
	ProductCode string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// HoldFilters narrows list queries over work order holds.
type HoldFilters struct {
	ClientIDs   []uuid.UUID
	WorkOrderID *uuid.UUID
	Status      string
	Aged        *bool
	Limit       int
	Offset      int
}

// WorkOrderFilters narrows list queries over work orders. DueFrom and DueTo
// bound the due date; Delivered filters on whether a delivery was recorded.
type WorkOrderFilters struct {
	ClientIDs []uuid.UUID
	DueFrom   *time.Time
	DueTo     *time.Time
	Delivered *bool
	Limit     int
	Offset    int
}
