package kpi

import (
	"fmt"
	"time"
)

// ShiftHours returns the length in hours of a shift running from start to
// end, both "HH:MM" wall clock times. A shift whose end is at or before its
// start crosses midnight and gains 24 hours: 22:00-06:00 is 8.0, not -16.
func ShiftHours(start, end string) (float64, error) {
	startMin, err := parseClockMinutes(start)
	if err != nil {
		return 0, fmt.Errorf("invalid start time %q: %w", start, err)
	}
	endMin, err := parseClockMinutes(end)
	if err != nil {
		return 0, fmt.Errorf("invalid end time %q: %w", end, err)
	}

	if endMin <= startMin {
		endMin += 24 * 60
	}
	return float64(endMin-startMin) / 60, nil
}

// parseClockMinutes converts "HH:MM" to minutes since midnight.
func parseClockMinutes(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
