package monitoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned when no metric record matches the lookup
var ErrRecordNotFound = errors.New("metric record not found")

// Repository defines data access for metric records. Records are append-only:
// there is deliberately no update or delete.
type Repository interface {
	Create(ctx context.Context, record *MetricRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MetricRecord, error)
	GetByReportID(ctx context.Context, reportID uuid.UUID) (*MetricRecord, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]MetricRecord, error)
}

// GormRepository is the Postgres-backed repository implementation
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates a metric record repository
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Create inserts a new metric record
func (r *GormRepository) Create(ctx context.Context, record *MetricRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create metric record: %w", err)
	}
	return nil
}

// GetByID retrieves a metric record by its primary key
func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*MetricRecord, error) {
	var record MetricRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get metric record: %w", err)
	}
	return &record, nil
}

// GetByReportID retrieves the metric record backing a report
func (r *GormRepository) GetByReportID(ctx context.Context, reportID uuid.UUID) (*MetricRecord, error) {
	var record MetricRecord
	if err := r.db.WithContext(ctx).First(&record, "report_id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get metric record: %w", err)
	}
	return &record, nil
}

// ListByProject retrieves the monitoring history for a project, newest first
func (r *GormRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]MetricRecord, error) {
	var records []MetricRecord
	query := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("submitted_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list metric records: %w", err)
	}
	return records, nil
}
