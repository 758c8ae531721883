package models

import (
	"time"

	"github.com/google/uuid"
)

// KPI name constants used in reports and cache keys.
const (
	KPIEfficiency   = "efficiency"
	KPIPerformance  = "performance"
	KPIPPM          = "ppm"
	KPIDPMO         = "dpmo"
	KPIFPY          = "fpy"
	KPIRTY          = "rty"
	KPIAvailability = "availability"
	KPIAbsenteeism  = "absenteeism"
	KPIOTD          = "otd"
	KPIWIPAging     = "wip_aging"
)

// Period bounds a KPI calculation by entry date, inclusive on both ends.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// KPIReport is one KPI computed for a client over a period. Value is null
// when the KPI could not be computed at all (missing cycle time with no
// history to infer from); a degenerate zero-denominator input instead
// reports 0 with the Degenerate flag.
type KPIReport struct {
	KPI        string    `json:"kpi"`
	ClientID   uuid.UUID `json:"client_id"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Value      *float64  `json:"value"`
	Inferred   bool      `json:"inferred"`
	Degenerate bool      `json:"degenerate"`
	SampleSize int       `json:"sample_size"`
}

// DashboardSummary is the full KPI set for a client over a period.
type DashboardSummary struct {
	ClientID    uuid.UUID `json:"client_id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`
	KPIs        KPISet    `json:"kpis"`
}

// KPISet holds the dashboard's individual KPI reports.
type KPISet struct {
	Efficiency   *KPIReport `json:"efficiency"`
	Performance  *KPIReport `json:"performance"`
	PPM          *KPIReport `json:"ppm"`
	DPMO         *KPIReport `json:"dpmo"`
	FPY          *KPIReport `json:"fpy"`
	RTY          *KPIReport `json:"rty"`
	Availability *KPIReport `json:"availability"`
	Absenteeism  *KPIReport `json:"absenteeism"`
	OTD          *KPIReport `json:"otd"`
	WIPAging     *KPIReport `json:"wip_aging"`
}
