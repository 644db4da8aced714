package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"carbon-market/mrv-backend/internal/monitoring"
)

// Trend describes the direction of a project's reported sequestration rate
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
)

// trendBand is the relative change below which the rate counts as stable
const trendBand = 0.05

// ProjectSummary aggregates a project's monitoring record chain
type ProjectSummary struct {
	ProjectID         uuid.UUID `json:"project_id"`
	RecordCount       int       `json:"record_count"`
	SupersededCount   int       `json:"superseded_count"`
	AverageRatePerDay float64   `json:"average_rate_per_day"`
	LatestRatePerDay  float64   `json:"latest_rate_per_day"`
	TotalMonths       int       `json:"total_months"`
	TotalAreaHectares float64   `json:"total_area_hectares"`
	Trend             Trend     `json:"trend"`
	ChangePercent     float64   `json:"change_percent"`
	FirstSubmittedAt  time.Time `json:"first_submitted_at"`
	LastSubmittedAt   time.Time `json:"last_submitted_at"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// RecordSource lists a project's monitoring records, newest first
type RecordSource interface {
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]monitoring.MetricRecord, error)
}

// Calculator derives summaries from the record chain
type Calculator struct {
	records RecordSource
}

func NewCalculator(records RecordSource) *Calculator {
	return &Calculator{records: records}
}

// maxChainLength bounds how much history a summary considers
const maxChainLength = 100

// Summarize computes the monitoring summary for a project. Superseded
// records are counted but excluded from the averages so corrections do not
// skew the trend.
func (c *Calculator) Summarize(ctx context.Context, projectID uuid.UUID) (*ProjectSummary, error) {
	records, err := c.records.ListByProject(ctx, projectID, maxChainLength)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no monitoring records for project %s", projectID)
	}

	superseded := make(map[uuid.UUID]bool)
	for _, r := range records {
		if r.SupersedesID != nil {
			superseded[*r.SupersedesID] = true
		}
	}

	summary := &ProjectSummary{
		ProjectID:        projectID,
		RecordCount:      len(records),
		FirstSubmittedAt: records[len(records)-1].SubmittedAt,
		LastSubmittedAt:  records[0].SubmittedAt,
		GeneratedAt:      time.Now(),
	}

	var sum float64
	var active int
	for _, r := range records {
		if superseded[r.ID] {
			summary.SupersededCount++
			continue
		}
		sum += r.SequestrationRatePerDay
		summary.TotalMonths += r.DurationMonths
		if r.SiteAreaHectares > summary.TotalAreaHectares {
			// Boundaries overlap across periods; report the largest
			summary.TotalAreaHectares = r.SiteAreaHectares
		}
		if active == 0 {
			summary.LatestRatePerDay = r.SequestrationRatePerDay
		}
		active++
	}
	if active == 0 {
		return nil, fmt.Errorf("project %s has only superseded records", projectID)
	}
	summary.AverageRatePerDay = sum / float64(active)

	summary.Trend, summary.ChangePercent = rateTrend(summary.AverageRatePerDay, summary.LatestRatePerDay)
	return summary, nil
}

func rateTrend(average, latest float64) (Trend, float64) {
	if average == 0 {
		return TrendStable, 0
	}
	change := (latest - average) / average
	switch {
	case change > trendBand:
		return TrendImproving, change * 100
	case change < -trendBand:
		return TrendDeclining, change * 100
	}
	return TrendStable, change * 100
}
