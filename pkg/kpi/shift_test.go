package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftHours_DayShift(t *testing.T) {
	hours, err := ShiftHours("06:00", "14:00")
	require.NoError(t, err)
	assert.Equal(t, 8.0, hours)
}

func TestShiftHours_OvernightShift(t *testing.T) {
	// End before start crosses midnight: 8 hours, not -16.
	hours, err := ShiftHours("22:00", "06:00")
	require.NoError(t, err)
	assert.Equal(t, 8.0, hours)
}

func TestShiftHours_FractionalHours(t *testing.T) {
	hours, err := ShiftHours("08:00", "16:30")
	require.NoError(t, err)
	assert.Equal(t, 8.5, hours)
}

func TestShiftHours_ShortOvernightShift(t *testing.T) {
	hours, err := ShiftHours("23:30", "00:15")
	require.NoError(t, err)
	assert.Equal(t, 0.75, hours)
}

func TestShiftHours_EqualStartAndEndIsFullDay(t *testing.T) {
	hours, err := ShiftHours("06:00", "06:00")
	require.NoError(t, err)
	assert.Equal(t, 24.0, hours)
}

func TestShiftHours_InvalidClock(t *testing.T) {
	_, err := ShiftHours("25:00", "06:00")
	assert.Error(t, err)

	_, err = ShiftHours("22:00", "six")
	assert.Error(t, err)
}
