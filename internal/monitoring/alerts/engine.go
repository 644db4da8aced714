package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carbon-market/mrv-backend/internal/monitoring"
)

// Severity classifies how strongly an advisory should influence a review
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Advisory is a heads-up for verifiers derived from a project's monitoring
// history. Advisories never block anything; they surface patterns a reviewer
// would otherwise have to dig for.
type Advisory struct {
	ProjectID   uuid.UUID              `json:"project_id"`
	Code        string                 `json:"code"`
	Severity    Severity               `json:"severity"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// RecordSource lists a project's monitoring records, newest first
type RecordSource interface {
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]monitoring.MetricRecord, error)
}

// Engine evaluates advisory rules against the record chain
type Engine struct {
	records RecordSource

	// Relative deviation of the latest rate from the chain average that
	// triggers a rate advisory
	maxDeviation float64
	// How many corrections in the chain before resubmission churn is flagged
	maxCorrections int
	// How old the latest record may be before it is considered stale
	maxAge time.Duration
}

func NewEngine(records RecordSource) *Engine {
	return &Engine{
		records:        records,
		maxDeviation:   0.25,
		maxCorrections: 3,
		maxAge:         120 * 24 * time.Hour,
	}
}

const chainLookback = 50

// Evaluate runs all advisory rules for a project
func (e *Engine) Evaluate(ctx context.Context, projectID uuid.UUID) ([]Advisory, error) {
	records, err := e.records.ListByProject(ctx, projectID, chainLookback)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	now := time.Now()
	var advisories []Advisory
	if adv := e.checkRateDeviation(projectID, records, now); adv != nil {
		advisories = append(advisories, *adv)
	}
	if adv := e.checkCorrectionChurn(projectID, records, now); adv != nil {
		advisories = append(advisories, *adv)
	}
	if adv := e.checkStaleReporting(projectID, records, now); adv != nil {
		advisories = append(advisories, *adv)
	}
	return advisories, nil
}

// checkRateDeviation flags a latest rate far off the historical average
func (e *Engine) checkRateDeviation(projectID uuid.UUID, records []monitoring.MetricRecord, now time.Time) *Advisory {
	if len(records) < 2 {
		return nil
	}

	latest := records[0].SequestrationRatePerDay
	var sum float64
	for _, r := range records[1:] {
		sum += r.SequestrationRatePerDay
	}
	average := sum / float64(len(records)-1)
	if average == 0 {
		return nil
	}

	deviation := (latest - average) / average
	if deviation < e.maxDeviation && deviation > -e.maxDeviation {
		return nil
	}

	direction := "above"
	if deviation < 0 {
		direction = "below"
	}
	return &Advisory{
		ProjectID: projectID,
		Code:      "rate_deviation",
		Severity:  SeverityWarning,
		Message: fmt.Sprintf("latest sequestration rate is %.0f%% %s the historical average",
			abs(deviation)*100, direction),
		Details: map[string]interface{}{
			"latest_rate_per_day":  latest,
			"average_rate_per_day": average,
			"deviation_percent":    deviation * 100,
		},
		GeneratedAt: now,
	}
}

// checkCorrectionChurn flags chains with many superseding corrections
func (e *Engine) checkCorrectionChurn(projectID uuid.UUID, records []monitoring.MetricRecord, now time.Time) *Advisory {
	corrections := 0
	for _, r := range records {
		if r.SupersedesID != nil {
			corrections++
		}
	}
	if corrections < e.maxCorrections {
		return nil
	}
	return &Advisory{
		ProjectID: projectID,
		Code:      "correction_churn",
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("project has submitted %d corrections", corrections),
		Details: map[string]interface{}{
			"corrections":  corrections,
			"record_count": len(records),
		},
		GeneratedAt: now,
	}
}

// checkStaleReporting flags projects that have gone quiet
func (e *Engine) checkStaleReporting(projectID uuid.UUID, records []monitoring.MetricRecord, now time.Time) *Advisory {
	age := now.Sub(records[0].SubmittedAt)
	if age < e.maxAge {
		return nil
	}
	return &Advisory{
		ProjectID: projectID,
		Code:      "stale_reporting",
		Severity:  SeverityInfo,
		Message:   fmt.Sprintf("no monitoring data submitted for %d days", int(age.Hours()/24)),
		Details: map[string]interface{}{
			"last_submitted_at": records[0].SubmittedAt,
		},
		GeneratedAt: now,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
