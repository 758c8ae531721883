package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailability_BasicRatio(t *testing.T) {
	// 60 downtime minutes against a 480 minute shift.
	result := Availability(60, 480)
	assert.InDelta(t, 87.5, result.Value, 0.001)
	assert.False(t, result.Degenerate)
}

func TestAvailability_NoDowntime(t *testing.T) {
	result := Availability(0, 480)
	assert.InDelta(t, 100.0, result.Value, 0.001)
}

func TestAvailability_ZeroScheduledMinutes(t *testing.T) {
	result := Availability(60, 0)
	assert.Equal(t, 0.0, result.Value)
	assert.True(t, result.Degenerate)
}

func TestAbsenteeism_BasicRatio(t *testing.T) {
	result := Absenteeism(8, 160)
	assert.InDelta(t, 5.0, result.Value, 0.001)
	assert.False(t, result.Degenerate)
}

func TestAbsenteeism_ZeroScheduledHours(t *testing.T) {
	result := Absenteeism(8, 0)
	assert.Equal(t, 0.0, result.Value)
	assert.True(t, result.Degenerate)
}
