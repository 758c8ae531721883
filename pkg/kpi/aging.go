package kpi

// WIPAging returns the mean fractional days on hold across the given holds.
// With no holds the mean is undefined and the result is degenerate.
func WIPAging(daysOnHold []float64) Result {
	if len(daysOnHold) == 0 {
		return Result{Value: 0, Degenerate: true}
	}

	total := 0.0
	for _, days := range daysOnHold {
		total += days
	}
	return Result{Value: total / float64(len(daysOnHold))}
}

// IsAged reports whether a hold's days on hold exceed the aging threshold.
func IsAged(daysOnHold, thresholdDays float64) bool {
	return daysOnHold > thresholdDays
}
