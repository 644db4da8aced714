package assessment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-market/mrv-backend/internal/monitoring"
)

func fptr(v float64) *float64 { return &v }

func forestryRecord(t *testing.T) *monitoring.MetricRecord {
	t.Helper()
	record := &monitoring.MetricRecord{
		MethodologyCode:         "VM-FOR",
		SequestrationRatePerDay: 2.4,
		DurationMonths:          3,
	}
	require.NoError(t, record.SetSecondary(&monitoring.SecondaryMetrics{
		BiodiversityIndex: fptr(0.8),
		SoilHealthIndex:   fptr(0.7),
	}))
	return record
}

func TestRegistryAssessesKnownMethodologies(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	factors, err := registry.Assess(ctx, forestryRecord(t))
	require.NoError(t, err)
	assert.NoError(t, factors.Validate())
	assert.Greater(t, factors.QualityScore, 0.0)
}

func TestRegistryRejectsUnknownMethodology(t *testing.T) {
	registry := NewRegistry()
	record := &monitoring.MetricRecord{MethodologyCode: "VM-XYZ"}

	_, err := registry.Assess(context.Background(), record)
	var incomplete *IncompleteInputsError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "VM-XYZ", incomplete.MethodologyCode)
}

func TestAssessReportsMissingMetrics(t *testing.T) {
	registry := NewRegistry()
	record := &monitoring.MetricRecord{MethodologyCode: "VM-FOR"}
	require.NoError(t, record.SetSecondary(&monitoring.SecondaryMetrics{
		BiodiversityIndex: fptr(0.8),
		// soil_health_index deliberately omitted
	}))

	_, err := registry.Assess(context.Background(), record)
	var incomplete *IncompleteInputsError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Missing, "soil_health_index")
}

func TestAssessRejectsOutOfRangeMetrics(t *testing.T) {
	registry := NewRegistry()
	record := &monitoring.MetricRecord{MethodologyCode: "VM-WST"}
	require.NoError(t, record.SetSecondary(&monitoring.SecondaryMetrics{
		CaptureEfficiency: fptr(1.4),
	}))

	_, err := registry.Assess(context.Background(), record)
	assert.Error(t, err)
}

func TestAssessIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()
	record := forestryRecord(t)

	first, err := registry.Assess(ctx, record)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := registry.Assess(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}

func TestAllMethodologiesProduceBoundedFactors(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	full := &monitoring.SecondaryMetrics{
		WaterQualityIndex:  fptr(1.0),
		BiodiversityIndex:  fptr(1.0),
		SoilHealthIndex:    fptr(1.0),
		CaptureEfficiency:  fptr(1.0),
		GridEmissionFactor: fptr(1.0),
	}
	empty := &monitoring.SecondaryMetrics{
		WaterQualityIndex:  fptr(0.0),
		BiodiversityIndex:  fptr(0.0),
		SoilHealthIndex:    fptr(0.0),
		CaptureEfficiency:  fptr(0.0),
		GridEmissionFactor: fptr(0.0),
	}

	for _, meta := range registry.SupportedMethodologies() {
		for _, metrics := range []*monitoring.SecondaryMetrics{full, empty} {
			record := &monitoring.MetricRecord{MethodologyCode: meta.Code}
			require.NoError(t, record.SetSecondary(metrics))

			factors, err := registry.Assess(ctx, record)
			require.NoError(t, err, "methodology %s", meta.Code)
			assert.NoError(t, factors.Validate(), "methodology %s", meta.Code)
		}
	}
}

func TestRiskFactorsValidate(t *testing.T) {
	valid := RiskFactors{0.9, 0.8, 0.95, 0.05, 0.1, 0.85}
	assert.NoError(t, valid.Validate())

	invalid := valid
	invalid.Permanence = 1.01
	assert.Error(t, invalid.Validate())

	invalid = valid
	invalid.Leakage = -0.1
	assert.Error(t, invalid.Validate())
}
