package kpi

// Efficiency returns labor efficiency as a percentage: earned hours
// (units produced times ideal cycle time) over staffed scheduled hours
// (employees assigned times scheduled hours).
//
// The denominator is scheduled hours, never actual run time. Dividing by
// run time understates the cost of idle staffed hours and collapses this
// KPI into Performance; the two must stay distinct.
func Efficiency(unitsProduced int, idealCycleTime float64, employeesAssigned int, scheduledHours float64) Result {
	earned := float64(unitsProduced) * idealCycleTime
	staffed := float64(employeesAssigned) * scheduledHours
	return ratio(earned, staffed)
}

// Performance returns machine performance as a percentage: earned hours over
// actual run time. Employees do not factor in; this measures how fast the
// line ran while it was running.
func Performance(unitsProduced int, idealCycleTime float64, runTimeHours float64) Result {
	earned := float64(unitsProduced) * idealCycleTime
	return ratio(earned, runTimeHours)
}
