package credits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/monitoring"
)

func testFactors() assessment.RiskFactors {
	return assessment.RiskFactors{
		BaselineComparison: 0.92,
		Additionality:      0.88,
		Permanence:         0.95,
		Leakage:            0.05,
		Uncertainty:        0.12,
		QualityScore:       0.89,
	}
}

func TestComputeWorkedExample(t *testing.T) {
	record := &monitoring.MetricRecord{
		SequestrationRatePerDay: 2.4,
		DurationMonths:          3,
	}

	result, err := Compute(record, testFactors())
	require.NoError(t, err)

	// round(2.4 × 90 × 0.92 × 0.88) = 175
	assert.Equal(t, 175, result.GrossCredits)
	// discount = 0.05 + 0.12 + (1 − 0.95) = 0.22 → round(175 × 0.22) = 39
	assert.Equal(t, 39, result.Adjustments)
	assert.Equal(t, 136, result.NetCredits)
	assert.Equal(t, 89, result.ConfidencePercent)
}

func TestComputeIsDeterministic(t *testing.T) {
	record := &monitoring.MetricRecord{
		SequestrationRatePerDay: 7.31,
		DurationMonths:          14,
	}
	factors := testFactors()

	first, err := Compute(record, factors)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		next, err := Compute(record, factors)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestComputeNeverNetsNegative(t *testing.T) {
	record := &monitoring.MetricRecord{
		SequestrationRatePerDay: 10,
		DurationMonths:          12,
	}
	// Summed discount 0.9 + 0.9 + 1.0 far exceeds 1.0
	factors := assessment.RiskFactors{
		BaselineComparison: 1.0,
		Additionality:      1.0,
		Permanence:         0.0,
		Leakage:            0.9,
		Uncertainty:        0.9,
		QualityScore:       0.2,
	}

	result, err := Compute(record, factors)
	require.NoError(t, err)

	assert.Equal(t, result.GrossCredits, result.Adjustments, "adjustments capped at gross")
	assert.Equal(t, 0, result.NetCredits)
}

func TestComputeNetNeverExceedsGross(t *testing.T) {
	records := []*monitoring.MetricRecord{
		{SequestrationRatePerDay: 0, DurationMonths: 1},
		{SequestrationRatePerDay: 0.003, DurationMonths: 1},
		{SequestrationRatePerDay: 55.5, DurationMonths: 120},
	}
	for _, record := range records {
		result, err := Compute(record, testFactors())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.NetCredits, 0)
		assert.LessOrEqual(t, result.NetCredits, result.GrossCredits)
	}
}

func TestComputeReasoningOrder(t *testing.T) {
	record := &monitoring.MetricRecord{
		SequestrationRatePerDay: 2.4,
		DurationMonths:          3,
	}

	result, err := Compute(record, testFactors())
	require.NoError(t, err)

	require.Len(t, result.Reasoning, 6)
	assert.Contains(t, result.Reasoning[0], "Baseline comparison: 92%")
	assert.Contains(t, result.Reasoning[1], "Additionality: 88%")
	assert.Contains(t, result.Reasoning[2], "Permanence: 95%")
	assert.Contains(t, result.Reasoning[3], "Leakage: 5%")
	assert.Contains(t, result.Reasoning[4], "Uncertainty: 12%")
	assert.Contains(t, result.Reasoning[5], "Quality score: 89%")
}

func TestComputeRejectsInvalidInputs(t *testing.T) {
	factors := testFactors()

	_, err := Compute(&monitoring.MetricRecord{SequestrationRatePerDay: -1, DurationMonths: 3}, factors)
	assert.Error(t, err)

	_, err = Compute(&monitoring.MetricRecord{SequestrationRatePerDay: 1, DurationMonths: 0}, factors)
	assert.Error(t, err)

	bad := factors
	bad.Leakage = 1.2
	_, err = Compute(&monitoring.MetricRecord{SequestrationRatePerDay: 1, DurationMonths: 3}, bad)
	assert.Error(t, err)
}
