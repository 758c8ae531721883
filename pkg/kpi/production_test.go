package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEfficiency_BasicRatio(t *testing.T) {
	// 1000 units at 0.01h each is 10 earned hours; 5 employees over an
	// 8 hour shift is 40 staffed hours.
	result := Efficiency(1000, 0.01, 5, 8)
	assert.InDelta(t, 25.0, result.Value, 0.001)
	assert.False(t, result.Degenerate)
}

func TestEfficiency_ZeroScheduledHours(t *testing.T) {
	result := Efficiency(1000, 0.01, 5, 0)
	assert.Equal(t, 0.0, result.Value)
	assert.True(t, result.Degenerate)
}

func TestEfficiency_ZeroEmployees(t *testing.T) {
	result := Efficiency(1000, 0.01, 0, 8)
	assert.Equal(t, 0.0, result.Value)
	assert.True(t, result.Degenerate)
}

func TestEfficiency_ZeroUnitsIsValidZero(t *testing.T) {
	result := Efficiency(0, 0.01, 5, 8)
	assert.Equal(t, 0.0, result.Value)
	assert.False(t, result.Degenerate)
}

func TestEfficiency_NotClampedAtHundred(t *testing.T) {
	result := Efficiency(5000, 0.01, 1, 8)
	assert.InDelta(t, 625.0, result.Value, 0.001)
}

func TestPerformance_RunTimeDenominator(t *testing.T) {
	// Same 10 earned hours over 6 hours of actual run time.
	result := Performance(1000, 0.01, 6)
	assert.InDelta(t, 166.667, result.Value, 0.001)
	assert.False(t, result.Degenerate)
}

func TestPerformance_FullShiftRunTime(t *testing.T) {
	result := Performance(1000, 0.01, 8)
	assert.InDelta(t, 125.0, result.Value, 0.001)
}

func TestPerformance_ZeroRunTime(t *testing.T) {
	result := Performance(1000, 0.01, 0)
	assert.Equal(t, 0.0, result.Value)
	assert.True(t, result.Degenerate)
}

func TestEfficiencyAndPerformanceUseDifferentDenominators(t *testing.T) {
	// Identical shift: the two KPIs must not collapse into each other.
	// Efficiency spreads earned hours over staffed scheduled hours;
	// Performance spreads them over machine run time.
	eff := Efficiency(1000, 0.01, 5, 8)
	perf := Performance(1000, 0.01, 8)
	assert.InDelta(t, 25.0, eff.Value, 0.001)
	assert.InDelta(t, 125.0, perf.Value, 0.001)
	assert.NotEqual(t, eff.Value, perf.Value)
}

func TestEfficiency_Idempotent(t *testing.T) {
	first := Efficiency(1000, 0.01, 5, 8)
	second := Efficiency(1000, 0.01, 5, 8)
	assert.Equal(t, first, second)
}
