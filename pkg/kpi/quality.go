package kpi

import "sort"

// PartsPerMillion returns defective units per million units inspected.
func PartsPerMillion(unitsDefective, unitsInspected int) Result {
	if unitsInspected == 0 {
		return Result{Value: 0, Degenerate: true}
	}
	return Result{Value: float64(unitsDefective) / float64(unitsInspected) * 1_000_000}
}

// DefectsPerMillionOpportunities returns defects per million defect
// opportunities, where opportunities are units inspected times the defect
// opportunities per unit.
func DefectsPerMillionOpportunities(defectCount, unitsInspected, opportunitiesPerUnit int) Result {
	opportunities := float64(unitsInspected) * float64(opportunitiesPerUnit)
	if opportunities == 0 {
		return Result{Value: 0, Degenerate: true}
	}
	return Result{Value: float64(defectCount) / opportunities * 1_000_000}
}

// FirstPassYield returns the percentage of inspected units that passed
// without defects.
func FirstPassYield(unitsInspected, unitsDefective int) Result {
	return ratio(float64(unitsInspected-unitsDefective), float64(unitsInspected))
}

// YieldStep is one process step's inspection totals, ordered by Sequence.
type YieldStep struct {
	Sequence       int
	UnitsInspected int
	UnitsDefective int
}

// RolledThroughputYield returns the percentage of units expected to pass
// every process step defect-free: the product of each step's first pass
// yield, taken in sequence order. Three steps at 95% yield roll up to about
// 85.7%, not 95%.
//
// With no steps, or any step with zero units inspected, the product is
// undefined and the result is degenerate.
func RolledThroughputYield(steps []YieldStep) Result {
	if len(steps) == 0 {
		return Result{Value: 0, Degenerate: true}
	}

	ordered := make([]YieldStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	rolled := 1.0
	for _, step := range ordered {
		if step.UnitsInspected == 0 {
			return Result{Value: 0, Degenerate: true}
		}
		rolled *= float64(step.UnitsInspected-step.UnitsDefective) / float64(step.UnitsInspected)
	}
	return Result{Value: rolled * 100}
}
