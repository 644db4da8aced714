package credits

import (
	"fmt"
	"math"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/monitoring"
)

// Result is the outcome of a credit calculation. NetCredits is always
// non-negative and never exceeds GrossCredits. Reasoning carries one
// human-readable line per factor, in a fixed order (baseline, additionality,
// permanence, leakage, uncertainty, quality) so the calculation can be
// audited independently of the code.
type Result struct {
	GrossCredits      int      `json:"gross_credits"`
	Adjustments       int      `json:"adjustments"`
	NetCredits        int      `json:"net_credits"`
	ConfidencePercent int      `json:"confidence_percent"`
	Reasoning         []string `json:"reasoning"`
}

// Compute derives issuable credits from a metric record and its risk factors.
// It is pure and deterministic: no clock, no randomness, no stored state.
//
//	gross       = round(rate/day × months × 30 × baseline × additionality)
//	adjustments = round(gross × (leakage + uncertainty + (1 − permanence)))
//	net         = max(0, gross − adjustments)
//	confidence  = round(quality × 100)
//
// Baseline and additionality act as multiplicative inclusion factors; the
// three discount channels are additive against gross so the adjustment reads
// as "percent of gross at risk". If the summed discount exceeds 1.0 the
// adjustment is capped at gross.
func Compute(record *monitoring.MetricRecord, factors assessment.RiskFactors) (*Result, error) {
	if record.SequestrationRatePerDay < 0 {
		return nil, fmt.Errorf("sequestration rate must be non-negative, got %f", record.SequestrationRatePerDay)
	}
	if record.DurationMonths < 1 {
		return nil, fmt.Errorf("duration must be at least 1 month, got %d", record.DurationMonths)
	}
	if err := factors.Validate(); err != nil {
		return nil, err
	}

	days := float64(record.DurationMonths) * 30
	gross := math.Round(record.SequestrationRatePerDay * days *
		factors.BaselineComparison * factors.Additionality)

	discount := factors.Leakage + factors.Uncertainty + (1 - factors.Permanence)
	adjustments := math.Round(gross * discount)
	if adjustments > gross {
		adjustments = gross
	}
	net := gross - adjustments

	return &Result{
		GrossCredits:      int(gross),
		Adjustments:       int(adjustments),
		NetCredits:        int(net),
		ConfidencePercent: pct(factors.QualityScore),
		Reasoning:         buildReasoning(factors),
	}, nil
}

// buildReasoning renders one justification line per factor. The order is a
// presentation contract relied on by the verification statement export.
func buildReasoning(f assessment.RiskFactors) []string {
	return []string{
		fmt.Sprintf("Baseline comparison: %d%% of monitored sequestration is creditable against the baseline scenario", pct(f.BaselineComparison)),
		fmt.Sprintf("Additionality: %d%% of the impact is attributed to the carbon finance incentive", pct(f.Additionality)),
		fmt.Sprintf("Permanence: %d%% long-term storage confidence, %d%% of gross discounted for reversal risk", pct(f.Permanence), pct(1-f.Permanence)),
		fmt.Sprintf("Leakage: %d%% of gross discounted for emissions displaced outside the project boundary", pct(f.Leakage)),
		fmt.Sprintf("Uncertainty: %d%% of gross discounted for measurement uncertainty", pct(f.Uncertainty)),
		fmt.Sprintf("Quality score: %d%% data quality yields %d%% confidence", pct(f.QualityScore), pct(f.QualityScore)),
	}
}

func pct(v float64) int {
	return int(math.Round(v * 100))
}
