package models

import (
	"time"

	"github.com/google/uuid"
)

// Hold status constants. A hold is requested, approved onto hold, then
// resumed through a second request/approval pair. RESUMED and CANCELLED are
// terminal.
const (
	HoldStatusPendingApproval = "PENDING_HOLD_APPROVAL"
	HoldStatusOnHold          = "ON_HOLD"
	HoldStatusPendingResume   = "PENDING_RESUME_APPROVAL"
	HoldStatusResumed         = "RESUMED"
	HoldStatusCancelled       = "CANCELLED"
)

// ValidHoldStatuses contains all valid hold status values.
var ValidHoldStatuses = []string{
	HoldStatusPendingApproval,
	HoldStatusOnHold,
	HoldStatusPendingResume,
	HoldStatusResumed,
	HoldStatusCancelled,
}

// holdTransitions maps each status to the statuses it may move to.
var holdTransitions = map[string][]string{
	HoldStatusPendingApproval: {HoldStatusOnHold, HoldStatusCancelled},
	HoldStatusOnHold:          {HoldStatusPendingResume, HoldStatusCancelled},
	HoldStatusPendingResume:   {HoldStatusResumed, HoldStatusOnHold},
	HoldStatusResumed:         {},
	HoldStatusCancelled:       {},
}

// CanTransitionHold reports whether a hold may move from one status to
// another.
func CanTransitionHold(from, to string) bool {
	for _, next := range holdTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalHoldStatus reports whether the status has no outgoing
// transitions.
func IsTerminalHoldStatus(status string) bool {
	return len(holdTransitions[status]) == 0
}

// HoldEntry represents a work order hold. HeldAt is set when the hold is
// approved; ResumedAt when the resume is approved.
type HoldEntry struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"client_id"`
	WorkOrderID uuid.UUID  `json:"work_order_id"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason"`
	RequestedBy uuid.UUID  `json:"requested_by"`
	ApprovedBy  *uuid.UUID `json:"approved_by,omitempty"`
	HeldAt      *time.Time `json:"held_at,omitempty"`
	ResumedAt   *time.Time `json:"resumed_at,omitempty"`
	Aged        bool       `json:"aged"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OnHold reports whether the work order is physically held, including while
// a resume request awaits approval.
func (h *HoldEntry) OnHold() bool {
	return h.Status == HoldStatusOnHold || h.Status == HoldStatusPendingResume
}

// DaysOnHold returns the fractional days the hold has been (or was) in
// effect as of the given time. Zero before the hold is approved.
func (h *HoldEntry) DaysOnHold(asOf time.Time) float64 {
	if h.HeldAt == nil {
		return 0
	}
	end := asOf
	if h.ResumedAt != nil {
		end = *h.ResumedAt
	}
	if end.Before(*h.HeldAt) {
		return 0
	}
	return end.Sub(*h.HeldAt).Hours() / 24
}
