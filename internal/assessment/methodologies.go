package assessment

import (
	"context"
	"fmt"

	"carbon-market/mrv-backend/internal/monitoring"
)

// metricValue validates a reported secondary metric index
func metricValue(name string, v *float64, missing *[]string) (float64, error) {
	if v == nil {
		*missing = append(*missing, name)
		return 0, nil
	}
	if *v < 0 || *v > 1 {
		return 0, fmt.Errorf("secondary metric %s out of range: %f", name, *v)
	}
	return *v, nil
}

// qualityFrom derives a data quality score from the average of the required
// metric indices. A floor keeps quality meaningful even when all indices are
// reported at zero.
func qualityFrom(values ...float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return clamp01(0.55 + 0.45*(sum/float64(len(values))))
}

// uncertaintyFrom scales a methodology's base uncertainty by data quality:
// better monitored projects carry less measurement uncertainty.
func uncertaintyFrom(base, quality float64) float64 {
	return clamp01(base * (1.5 - quality))
}

// =====================================================
// Forestry (afforestation / improved forest management)
// =====================================================

type ForestryAssessor struct{}

func (a *ForestryAssessor) GetMetadata() *Metadata {
	return &Metadata{
		Code:            "VM-FOR",
		Name:            "Forestry Sequestration",
		Sector:          "Forestry",
		Version:         "1.1",
		RequiredMetrics: []string{"biodiversity_index", "soil_health_index"},
	}
}

func (a *ForestryAssessor) Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error) {
	secondary, err := record.Secondary()
	if err != nil {
		return RiskFactors{}, err
	}

	var missing []string
	biodiversity, err := metricValue("biodiversity_index", secondary.BiodiversityIndex, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	soil, err := metricValue("soil_health_index", secondary.SoilHealthIndex, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	if len(missing) > 0 {
		return RiskFactors{}, &IncompleteInputsError{MethodologyCode: "VM-FOR", Missing: missing}
	}

	quality := qualityFrom(biodiversity, soil)
	return RiskFactors{
		BaselineComparison: 0.90,
		Additionality:      0.85,
		// Reversal risk dominates forestry projects; healthy soil is the
		// strongest indicator of durable storage.
		Permanence:   clamp01(0.82 + 0.12*soil),
		Leakage:      0.08,
		Uncertainty:  uncertaintyFrom(0.12, quality),
		QualityScore: quality,
	}, nil
}

// =====================================================
// Renewable energy (grid displacement)
// =====================================================

type RenewableEnergyAssessor struct{}

func (a *RenewableEnergyAssessor) GetMetadata() *Metadata {
	return &Metadata{
		Code:            "VM-REN",
		Name:            "Renewable Energy Displacement",
		Sector:          "Energy",
		Version:         "1.0",
		RequiredMetrics: []string{"grid_emission_factor"},
	}
}

func (a *RenewableEnergyAssessor) Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error) {
	secondary, err := record.Secondary()
	if err != nil {
		return RiskFactors{}, err
	}

	var missing []string
	gridFactor, err := metricValue("grid_emission_factor", secondary.GridEmissionFactor, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	if len(missing) > 0 {
		return RiskFactors{}, &IncompleteInputsError{MethodologyCode: "VM-REN", Missing: missing}
	}

	quality := qualityFrom(gridFactor)
	return RiskFactors{
		// Displaced generation is only creditable against a carbon-heavy grid
		BaselineComparison: clamp01(0.75 + 0.20*gridFactor),
		Additionality:      0.80,
		Permanence:         0.98, // avoided emissions cannot reverse
		Leakage:            0.02,
		Uncertainty:        uncertaintyFrom(0.06, quality),
		QualityScore:       quality,
	}, nil
}

// =====================================================
// Blue carbon (mangrove / seagrass restoration)
// =====================================================

type BlueCarbonAssessor struct{}

func (a *BlueCarbonAssessor) GetMetadata() *Metadata {
	return &Metadata{
		Code:            "VM-BLC",
		Name:            "Blue Carbon Restoration",
		Sector:          "Coastal",
		Version:         "1.2",
		RequiredMetrics: []string{"water_quality_index", "biodiversity_index"},
	}
}

func (a *BlueCarbonAssessor) Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error) {
	secondary, err := record.Secondary()
	if err != nil {
		return RiskFactors{}, err
	}

	var missing []string
	water, err := metricValue("water_quality_index", secondary.WaterQualityIndex, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	biodiversity, err := metricValue("biodiversity_index", secondary.BiodiversityIndex, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	if len(missing) > 0 {
		return RiskFactors{}, &IncompleteInputsError{MethodologyCode: "VM-BLC", Missing: missing}
	}

	quality := qualityFrom(water, biodiversity)
	return RiskFactors{
		BaselineComparison: 0.88,
		Additionality:      0.90,
		Permanence:         clamp01(0.76 + 0.14*water),
		Leakage:            0.05,
		Uncertainty:        uncertaintyFrom(0.15, quality),
		QualityScore:       quality,
	}, nil
}

// =====================================================
// Waste (landfill gas capture)
// =====================================================

type WasteAssessor struct{}

func (a *WasteAssessor) GetMetadata() *Metadata {
	return &Metadata{
		Code:            "VM-WST",
		Name:            "Waste Gas Capture",
		Sector:          "Waste",
		Version:         "1.0",
		RequiredMetrics: []string{"capture_efficiency"},
	}
}

func (a *WasteAssessor) Assess(ctx context.Context, record *monitoring.MetricRecord) (RiskFactors, error) {
	secondary, err := record.Secondary()
	if err != nil {
		return RiskFactors{}, err
	}

	var missing []string
	capture, err := metricValue("capture_efficiency", secondary.CaptureEfficiency, &missing)
	if err != nil {
		return RiskFactors{}, err
	}
	if len(missing) > 0 {
		return RiskFactors{}, &IncompleteInputsError{MethodologyCode: "VM-WST", Missing: missing}
	}

	quality := qualityFrom(capture)
	return RiskFactors{
		BaselineComparison: clamp01(0.80 + 0.15*capture),
		Additionality:      0.92,
		Permanence:         0.97, // destroyed methane cannot reverse
		Leakage:            0.03,
		Uncertainty:        uncertaintyFrom(0.10, quality),
		QualityScore:       quality,
	}, nil
}
