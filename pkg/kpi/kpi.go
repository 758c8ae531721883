// Package kpi implements the manufacturing KPI formulas. Every function is
// pure and stateless: the same inputs always produce the same Result, and a
// zero denominator yields a zero value with the Degenerate flag set instead
// of NaN, an error, or a panic.
//
// Ratio KPIs (efficiency, performance, yields, availability, absenteeism,
// on-time delivery) return percentages and are not clamped; values over 100
// are legal and meaningful. PPM and DPMO return raw defect rates per
// million. WIP aging returns fractional days.
package kpi

// Result is the outcome of a single KPI calculation.
type Result struct {
	// Value is the calculated KPI in the unit documented on each formula.
	Value float64 `json:"value"`
	// Inferred is set when an input (ideal cycle time) was estimated from
	// history rather than recorded.
	Inferred bool `json:"inferred"`
	// Degenerate is set when a denominator was zero and the value was
	// forced to 0.
	Degenerate bool `json:"degenerate"`
}

// ratio returns numerator/denominator as a percentage, or a degenerate zero
// result when the denominator is zero.
func ratio(numerator, denominator float64) Result {
	if denominator == 0 {
		return Result{Value: 0, Degenerate: true}
	}
	return Result{Value: numerator / denominator * 100}
}

// Ratio returns numerator/denominator as a percentage. Period aggregations
// sum numerators and denominators across entries and compute the ratio once;
// averaging per-entry percentages would weight a ten-minute run the same as
// a full shift.
func Ratio(numerator, denominator float64) Result {
	return ratio(numerator, denominator)
}

// PerMillion returns count per million opportunities, or a degenerate zero
// result when there are no opportunities.
func PerMillion(count, opportunities float64) Result {
	if opportunities == 0 {
		return Result{Value: 0, Degenerate: true}
	}
	return Result{Value: count / opportunities * 1_000_000}
}
