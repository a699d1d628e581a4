package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateOrderCapitalFirst(t *testing.T) {
	e := mustEngine(t)

	// Both capital and technical fail; the reported reason must be capital's.
	result := e.EvaluateGates(fullSet(10, 10, 90, 50, 1.0, 2.0))
	assert.False(t, result.Passed)
	assert.Contains(t, result.FailReason, "capital")
	assert.NotContains(t, result.FailReason, "technical")
}

func TestGateSequence(t *testing.T) {
	e := mustEngine(t)

	result := e.EvaluateGates(fullSet(95, 90, 80, 50, 1.0, 2.0))
	require.Len(t, result.Checks, 3)
	assert.True(t, result.Passed)
	assert.Empty(t, result.FailReason)

	assert.Equal(t, "capital", result.Checks[0].Name)
	assert.Equal(t, "technical", result.Checks[1].Name)
	assert.Equal(t, "relative_strength", result.Checks[2].Name)
	for _, check := range result.Checks {
		assert.True(t, check.Passed, check.Name)
		assert.GreaterOrEqual(t, check.Value, check.Threshold)
		assert.NotEmpty(t, check.Description)
	}
}

func TestGateThresholdBoundary(t *testing.T) {
	e := mustEngine(t)

	// Scores exactly at their thresholds pass.
	result := e.EvaluateGates(fullSet(80, 75, 60, 50, 1.0, 2.0))
	assert.True(t, result.Passed)

	result = e.EvaluateGates(fullSet(79.999, 75, 60, 50, 1.0, 2.0))
	assert.False(t, result.Passed)
}

func TestGateCatalystNeverGates(t *testing.T) {
	e := mustEngine(t)

	// Catalyst score 0 must not appear in the gate sequence at all.
	result := e.EvaluateGates(fullSet(95, 90, 80, 0, 1.0, 2.0))
	assert.True(t, result.Passed)
	for _, check := range result.Checks {
		assert.NotEqual(t, "catalyst", check.Name)
	}
}

func TestGatesLaterChecksStillReported(t *testing.T) {
	e := mustEngine(t)

	// Capital fails; the relative-strength check is still present and scored.
	result := e.EvaluateGates(fullSet(10, 90, 80, 50, 1.0, 2.0))
	require.Len(t, result.Checks, 3)
	assert.False(t, result.Checks[0].Passed)
	assert.True(t, result.Checks[1].Passed)
	assert.True(t, result.Checks[2].Passed)
}

func TestGatesMissingDimension(t *testing.T) {
	e := mustEngine(t)

	set := fullSet(95, 90, 80, 50, 1.0, 2.0)
	set.Capital = nil

	// A missing dimension reads neutral 50 and fails the 80 floor.
	result := e.EvaluateGates(set)
	assert.False(t, result.Passed)
	assert.Equal(t, 50.0, result.Checks[0].Value)
}
