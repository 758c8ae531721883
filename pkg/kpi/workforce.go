package kpi

// Availability returns the percentage of scheduled minutes the line was
// actually available: (scheduled - downtime) / scheduled.
func Availability(downtimeMinutes, scheduledMinutes float64) Result {
	return ratio(scheduledMinutes-downtimeMinutes, scheduledMinutes)
}

// Absenteeism returns absence hours as a percentage of scheduled hours.
func Absenteeism(absenceHours, scheduledHours float64) Result {
	return ratio(absenceHours, scheduledHours)
}
