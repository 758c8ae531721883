// Package models contains domain types for opsline-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Client represents a manufacturing client (tenant). All operational data
// rows carry a client ID and are only reachable through an access scope that
// includes it.
type Client struct {
	ID                     uuid.UUID `json:"id"`
	Name                   string    `json:"name"`
	Code                   string    `json:"code"`
	OTDMode                string    `json:"otd_mode"` // 'TRUE', 'STANDARD'
	OTDGraceDays           int       `json:"otd_grace_days"`
	EfficiencyTarget       float64   `json:"efficiency_target"`
	HoldAgingThresholdDays int       `json:"hold_aging_threshold_days"`
	Active                 bool      `json:"active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// OTD mode constants. TRUE counts a delivery on time only when it lands on
// or before the due date; STANDARD allows a per-client grace window.
const (
	OTDModeTrue     = "TRUE"
	OTDModeStandard = "STANDARD"
)

// ValidOTDModes contains all valid OTD mode values.
var ValidOTDModes = []string{OTDModeTrue, OTDModeStandard}

// IsValidOTDMode checks if the given mode is valid.
func IsValidOTDMode(mode string) bool {
	for _, m := range ValidOTDModes {
		if m == mode {
			return true
		}
	}
	return false
}
