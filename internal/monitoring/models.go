package monitoring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MetricRecord holds the raw monitoring values for one reporting period of
// one project. Records are immutable once submitted; corrections are
// submitted as a new record that references the prior one via SupersedesID.
type MetricRecord struct {
	ID                      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID               uuid.UUID      `gorm:"type:uuid;index" json:"project_id"`
	ReportID                uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"report_id"`
	MethodologyCode         string         `gorm:"size:32;index" json:"methodology_code"`
	SequestrationRatePerDay float64        `json:"sequestration_rate_per_day"` // tCO2e/day
	DurationMonths          int            `json:"duration_months"`
	SecondaryMetrics        datatypes.JSON `json:"secondary_metrics"`
	SiteBoundary            datatypes.JSON `json:"site_boundary,omitempty"`
	SiteAreaHectares        float64        `json:"site_area_hectares,omitempty"`
	SupersedesID            *uuid.UUID     `gorm:"type:uuid" json:"supersedes_id,omitempty"`
	SubmittedBy             uuid.UUID      `gorm:"type:uuid" json:"submitted_by"`
	SubmittedAt             time.Time      `json:"submitted_at"`
}

// TableName overrides the gorm table name
func (MetricRecord) TableName() string {
	return "metric_records"
}

// SecondaryMetrics are informational co-benefit indices reported alongside
// the sequestration figures. They feed the quality assessment but are not
// part of the credit formula. All indices are expected in [0,1].
type SecondaryMetrics struct {
	WaterQualityIndex  *float64 `json:"water_quality_index,omitempty"`
	BiodiversityIndex  *float64 `json:"biodiversity_index,omitempty"`
	SoilHealthIndex    *float64 `json:"soil_health_index,omitempty"`
	CaptureEfficiency  *float64 `json:"capture_efficiency,omitempty"`
	GridEmissionFactor *float64 `json:"grid_emission_factor,omitempty"`
}

// Secondary decodes the stored secondary metrics payload
func (r *MetricRecord) Secondary() (*SecondaryMetrics, error) {
	metrics := &SecondaryMetrics{}
	if len(r.SecondaryMetrics) == 0 {
		return metrics, nil
	}
	if err := json.Unmarshal(r.SecondaryMetrics, metrics); err != nil {
		return nil, fmt.Errorf("failed to parse secondary metrics: %w", err)
	}
	return metrics, nil
}

// SetSecondary encodes the secondary metrics payload
func (r *MetricRecord) SetSecondary(metrics *SecondaryMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to encode secondary metrics: %w", err)
	}
	r.SecondaryMetrics = datatypes.JSON(data)
	return nil
}
