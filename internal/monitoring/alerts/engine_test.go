package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carbon-market/mrv-backend/internal/monitoring"
)

type stubRecords struct {
	records []monitoring.MetricRecord
}

func (s *stubRecords) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]monitoring.MetricRecord, error) {
	return s.records, nil
}

func record(projectID uuid.UUID, rate float64, age time.Duration) monitoring.MetricRecord {
	return monitoring.MetricRecord{
		ID:                      uuid.New(),
		ProjectID:               projectID,
		ReportID:                uuid.New(),
		SequestrationRatePerDay: rate,
		SubmittedAt:             time.Now().Add(-age),
	}
}

func advisoryCodes(advisories []Advisory) []string {
	codes := make([]string, len(advisories))
	for i, a := range advisories {
		codes[i] = a.Code
	}
	return codes
}

func TestEvaluateFlagsRateDeviation(t *testing.T) {
	projectID := uuid.New()
	engine := NewEngine(&stubRecords{records: []monitoring.MetricRecord{
		record(projectID, 5.0, 0),
		record(projectID, 2.0, 90*24*time.Hour),
		record(projectID, 2.2, 180*24*time.Hour),
	}})

	advisories, err := engine.Evaluate(context.Background(), projectID)
	require.NoError(t, err)
	require.Contains(t, advisoryCodes(advisories), "rate_deviation")

	for _, a := range advisories {
		if a.Code == "rate_deviation" {
			assert.Equal(t, SeverityWarning, a.Severity)
			assert.Contains(t, a.Message, "above")
		}
	}
}

func TestEvaluateQuietOnSteadyChain(t *testing.T) {
	projectID := uuid.New()
	engine := NewEngine(&stubRecords{records: []monitoring.MetricRecord{
		record(projectID, 2.1, 0),
		record(projectID, 2.0, 90*24*time.Hour),
	}})

	advisories, err := engine.Evaluate(context.Background(), projectID)
	require.NoError(t, err)
	assert.Empty(t, advisories)
}

func TestEvaluateFlagsCorrectionChurn(t *testing.T) {
	projectID := uuid.New()
	records := []monitoring.MetricRecord{
		record(projectID, 2.0, 0),
		record(projectID, 2.0, 30*24*time.Hour),
		record(projectID, 2.0, 60*24*time.Hour),
		record(projectID, 2.0, 90*24*time.Hour),
	}
	for i := 0; i < 3; i++ {
		records[i].SupersedesID = &records[i+1].ID
	}

	engine := NewEngine(&stubRecords{records: records})
	advisories, err := engine.Evaluate(context.Background(), projectID)
	require.NoError(t, err)
	assert.Contains(t, advisoryCodes(advisories), "correction_churn")
}

func TestEvaluateFlagsStaleReporting(t *testing.T) {
	projectID := uuid.New()
	engine := NewEngine(&stubRecords{records: []monitoring.MetricRecord{
		record(projectID, 2.0, 200*24*time.Hour),
	}})

	advisories, err := engine.Evaluate(context.Background(), projectID)
	require.NoError(t, err)
	assert.Contains(t, advisoryCodes(advisories), "stale_reporting")
}

func TestEvaluateEmptyChain(t *testing.T) {
	engine := NewEngine(&stubRecords{})
	advisories, err := engine.Evaluate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, advisories)
}
