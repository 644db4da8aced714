package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"carbon-market/mrv-backend/pkg/geospatial"
)

// Service provides business logic for metric record submission
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new monitoring service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// SubmitRequest carries a reporting party's monitoring values for one period
type SubmitRequest struct {
	ProjectID               uuid.UUID         `json:"project_id" binding:"required"`
	ReportID                uuid.UUID         `json:"report_id" binding:"required"`
	MethodologyCode         string            `json:"methodology_code" binding:"required"`
	SequestrationRatePerDay float64           `json:"sequestration_rate_per_day"`
	DurationMonths          int               `json:"duration_months"`
	SecondaryMetrics        *SecondaryMetrics `json:"secondary_metrics,omitempty"`
	SiteBoundary            json.RawMessage   `json:"site_boundary,omitempty"`
	SupersedesID            *uuid.UUID        `json:"supersedes_id,omitempty"`
	SubmittedBy             uuid.UUID         `json:"submitted_by"`
}

// Submit validates and stores a new metric record. The record is immutable
// after this point; a correction must supersede it with a new record.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*MetricRecord, error) {
	if req.SequestrationRatePerDay < 0 {
		return nil, fmt.Errorf("sequestration rate must be non-negative, got %f", req.SequestrationRatePerDay)
	}
	if req.DurationMonths < 1 {
		return nil, fmt.Errorf("duration must be at least 1 month, got %d", req.DurationMonths)
	}
	if req.MethodologyCode == "" {
		return nil, fmt.Errorf("methodology code is required")
	}

	if req.SupersedesID != nil {
		prior, err := s.repo.GetByID(ctx, *req.SupersedesID)
		if err != nil {
			return nil, fmt.Errorf("superseded record lookup failed: %w", err)
		}
		if prior.ProjectID != req.ProjectID {
			return nil, fmt.Errorf("superseded record belongs to a different project")
		}
	}

	record := &MetricRecord{
		ID:                      uuid.New(),
		ProjectID:               req.ProjectID,
		ReportID:                req.ReportID,
		MethodologyCode:         req.MethodologyCode,
		SequestrationRatePerDay: req.SequestrationRatePerDay,
		DurationMonths:          req.DurationMonths,
		SupersedesID:            req.SupersedesID,
		SubmittedBy:             req.SubmittedBy,
		SubmittedAt:             time.Now(),
	}
	if req.SecondaryMetrics != nil {
		if err := record.SetSecondary(req.SecondaryMetrics); err != nil {
			return nil, err
		}
	}
	if len(req.SiteBoundary) > 0 {
		boundary, err := geospatial.ParseBoundary(req.SiteBoundary)
		if err != nil {
			return nil, fmt.Errorf("invalid site boundary: %w", err)
		}
		record.SiteBoundary = datatypes.JSON(req.SiteBoundary)
		record.SiteAreaHectares = geospatial.AreaHectares(boundary)
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Metric record submitted",
		zap.String("record_id", record.ID.String()),
		zap.String("report_id", record.ReportID.String()),
		zap.String("methodology", record.MethodologyCode))

	return record, nil
}

// GetByReportID returns the metric record backing a report
func (s *Service) GetByReportID(ctx context.Context, reportID uuid.UUID) (*MetricRecord, error) {
	return s.repo.GetByReportID(ctx, reportID)
}

// GetByID returns a metric record by primary key
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*MetricRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// History returns the monitoring record chain for a project, newest first
func (s *Service) History(ctx context.Context, projectID uuid.UUID, limit int) ([]MetricRecord, error) {
	records, err := s.repo.ListByProject(ctx, projectID, limit)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	return records, nil
}
