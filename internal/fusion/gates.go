package fusion

import (
	"fmt"

	"github.com/lodestar-quant/lodestar/internal/profile"
)

// GateCheck records one quality-gate evaluation for transparency.
type GateCheck struct {
	Name        string  `json:"name"`
	Passed      bool    `json:"passed"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
}

// GateResult is the ordered outcome of the gate sequence. FailReason names
// the first failed gate; later checks are still evaluated for the report.
type GateResult struct {
	Checks     []GateCheck `json:"checks"`
	Passed     bool        `json:"passed"`
	FailReason string      `json:"fail_reason,omitempty"`
}

// FailedGate returns the name of the first failed check, or "" when all
// gates passed.
func (r GateResult) FailedGate() string {
	for _, check := range r.Checks {
		if !check.Passed {
			return check.Name
		}
	}
	return ""
}

// EvaluateGates runs the quality gates in their fixed order: capital first,
// technical second, relative strength third. Catalyst never gates, it only
// weights conviction.
func (e *Engine) EvaluateGates(set *profile.ProfileSet) GateResult {
	th := e.config.Thresholds
	checks := []GateCheck{
		gateCheck("capital", dimensionScore(capitalBase(set)), th.CapitalMin,
			"main-force inflow strong enough to back the move"),
		gateCheck("technical", dimensionScore(technicalBase(set)), th.TechnicalMin,
			"price structure supports an entry"),
		gateCheck("relative_strength", dimensionScore(rsBase(set)), th.RSMin,
			"not lagging the market"),
	}

	result := GateResult{Checks: checks, Passed: true}
	for _, check := range checks {
		if !check.Passed {
			result.Passed = false
			result.FailReason = fmt.Sprintf("%s score %.1f below %.1f",
				check.Name, check.Value, check.Threshold)
			break
		}
	}
	return result
}

func gateCheck(name string, value, threshold float64, description string) GateCheck {
	return GateCheck{
		Name:        name,
		Passed:      value >= threshold,
		Value:       value,
		Threshold:   threshold,
		Description: description,
	}
}

// dimensionScore treats a missing dimension as the neutral 50.
func dimensionScore(p *profile.Profile) float64 {
	if p == nil {
		return 50
	}
	return p.Score
}

func capitalBase(set *profile.ProfileSet) *profile.Profile {
	if set == nil || set.Capital == nil {
		return nil
	}
	return &set.Capital.Profile
}

func technicalBase(set *profile.ProfileSet) *profile.Profile {
	if set == nil || set.Technical == nil {
		return nil
	}
	return &set.Technical.Profile
}

func rsBase(set *profile.ProfileSet) *profile.Profile {
	if set == nil || set.RelativeStrength == nil {
		return nil
	}
	return &set.RelativeStrength.Profile
}

func catalystBase(set *profile.ProfileSet) *profile.Profile {
	if set == nil || set.Catalyst == nil {
		return nil
	}
	return &set.Catalyst.Profile
}
