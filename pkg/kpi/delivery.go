package kpi

import "time"

// Delivery is one shipped work order's due and actual delivery dates.
type Delivery struct {
	DueDate     time.Time
	DeliveredAt time.Time
}

// OnTime reports whether the delivery landed within graceDays calendar days
// after the due date. Comparison is by calendar date, not instant: a
// delivery at 23:59 on the due date is on time with zero grace.
func (d Delivery) OnTime(graceDays int) bool {
	due := dateOf(d.DueDate).AddDate(0, 0, graceDays)
	return !dateOf(d.DeliveredAt).After(due)
}

// OnTimeDelivery returns the percentage of deliveries that landed on or
// before their due date plus graceDays. Strict (TRUE mode) scoring passes
// graceDays zero; STANDARD mode passes the client's grace window. With no
// deliveries the rate is undefined and the result is degenerate.
func OnTimeDelivery(deliveries []Delivery, graceDays int) Result {
	if len(deliveries) == 0 {
		return Result{Value: 0, Degenerate: true}
	}

	onTime := 0
	for _, d := range deliveries {
		if d.OnTime(graceDays) {
			onTime++
		}
	}
	return ratio(float64(onTime), float64(len(deliveries)))
}

// dateOf truncates an instant to its calendar date in its own location.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
