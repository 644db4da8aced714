package assessment

import (
	"context"
	"fmt"
	"strings"

	"carbon-market/mrv-backend/internal/monitoring"
)

// RiskFactors are the dimensionless factors derived from a metric record and
// its methodology metadata. Every factor must lie in [0,1]; a value outside
// that range is a computation defect, never a valid state.
type RiskFactors struct {
	BaselineComparison float64 `json:"baseline_comparison"`
	Additionality      float64 `json:"additionality"`
	Permanence         float64 `json:"permanence"`
	Leakage            float64 `json:"leakage"`
	Uncertainty        float64 `json:"uncertainty"`
	QualityScore       float64 `json:"quality_score"`
}

// Validate checks that all six factors are within [0,1]
func (f RiskFactors) Validate() error {
	checks := []struct {
		name  string
		value float64
	}{
		{"baseline_comparison", f.BaselineComparison},
		{"additionality", f.Additionality},
		{"permanence", f.Permanence},
		{"leakage", f.Leakage},
		{"uncertainty", f.Uncertainty},
		{"quality_score", f.QualityScore},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 1 {
			return fmt.Errorf("risk factor %s out of range: %f", c.name, c.value)
		}
	}
	return nil
}

// IncompleteInputsError indicates the assessor cannot produce valid factors
// because required methodology inputs are missing. Defaulting factors
// silently would corrupt the credit count, so this is always surfaced.
type IncompleteInputsError struct {
	MethodologyCode string
	Missing         []string
}

func (e *IncompleteInputsError) Error() string {
	return fmt.Sprintf("incomplete inputs for methodology %s: missing %s",
		e.MethodologyCode, strings.Join(e.Missing, ", "))
}

// Metadata describes an assessment methodology
type Metadata struct {
	Code            string   `json:"code"`
	Name            string   `json:"name"`
	Sector          string   `json:"sector"`
	Version         string   `json:"version"`
	RequiredMetrics []string `json:"required_metrics"`
}

// Assessor derives risk and quality factors for one methodology. Assessments
// are idempotent: the same record always yields the same factors.
type Assessor interface {
	Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error)
	GetMetadata() *Metadata
}

// Registry dispatches assessment requests to the methodology strategies
type Registry struct {
	assessors map[string]Assessor
}

// NewRegistry creates a registry with the built-in methodologies registered
func NewRegistry() *Registry {
	r := &Registry{assessors: make(map[string]Assessor)}
	r.Register(&ForestryAssessor{})
	r.Register(&RenewableEnergyAssessor{})
	r.Register(&BlueCarbonAssessor{})
	r.Register(&WasteAssessor{})
	return r
}

// Register adds an assessor keyed by its methodology code
func (r *Registry) Register(a Assessor) {
	r.assessors[a.GetMetadata().Code] = a
}

// Assess runs the methodology strategy matching the record's code
func (r *Registry) Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error) {
	assessor, exists := r.assessors[record.MethodologyCode]
	if !exists {
		return RiskFactors{}, &IncompleteInputsError{
			MethodologyCode: record.MethodologyCode,
			Missing:         []string{"methodology metadata"},
		}
	}
	factors, err := assessor.Assess(ctx, record)
	if err != nil {
		return RiskFactors{}, err
	}
	if err := factors.Validate(); err != nil {
		return RiskFactors{}, fmt.Errorf("assessor %s produced invalid factors: %w", record.MethodologyCode, err)
	}
	return factors, nil
}

// SupportedMethodologies lists metadata for all registered methodologies
func (r *Registry) SupportedMethodologies() []Metadata {
	var methodologies []Metadata
	for _, a := range r.assessors {
		methodologies = append(methodologies, *a.GetMetadata())
	}
	return methodologies
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
