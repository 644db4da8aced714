package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"carbon-market/mrv-backend/internal/issuance"
)

// Repository defines data access for report reviews and the issuance outbox
type Repository interface {
	CreateReview(ctx context.Context, review *Review) error
	GetReviewByReportID(ctx context.Context, reportID uuid.UUID) (*Review, error)
	// UpdateReview persists the review iff the stored version still equals
	// expectedVersion, bumping the version by one. When outbox is non-nil
	// the issuance request is written in the same transaction, so a decision
	// and its emission commit or fail together. Returns ErrStaleVersion on
	// a lost race and ErrReviewNotFound for unknown reports.
	UpdateReview(ctx context.Context, review *Review, expectedVersion int, outbox *issuance.Request) error
	ListActiveReviews(ctx context.Context) ([]*Review, error)

	// Issuance outbox (issuance.OutboxStore)
	PendingIssuance(ctx context.Context, limit int) ([]issuance.Request, error)
	MarkIssuancePublished(ctx context.Context, reportID uuid.UUID) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewRepository creates a new PostgreSQL review repository
func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateReview inserts a new review row at version 1
func (r *PostgresRepository) CreateReview(ctx context.Context, review *Review) error {
	query := `
		INSERT INTO report_reviews (
			id, report_id, project_id, metric_record_id, project_name,
			organization_name, methodology_code, status, priority,
			calculation, checklist, decision_notes, verifier_id, decided_at,
			submitted_at, updated_at, version
		) VALUES (
			:id, :report_id, :project_id, :metric_record_id, :project_name,
			:organization_name, :methodology_code, :status, :priority,
			:calculation, :checklist, :decision_notes, :verifier_id, :decided_at,
			:submitted_at, :updated_at, :version
		)`

	review.Version = 1
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("review already exists for report %s", review.ReportID)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetReviewByReportID retrieves the review for a report
func (r *PostgresRepository) GetReviewByReportID(ctx context.Context, reportID uuid.UUID) (*Review, error) {
	var review Review
	query := `SELECT * FROM report_reviews WHERE report_id = $1`
	if err := r.db.GetContext(ctx, &review, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &review, nil
}

// UpdateReview applies an optimistically-locked update, optionally writing
// an issuance outbox row in the same transaction
func (r *PostgresRepository) UpdateReview(ctx context.Context, review *Review, expectedVersion int, outbox *issuance.Request) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE report_reviews SET
			status = $1,
			priority = $2,
			checklist = $3,
			calculation = $4,
			metric_record_id = $5,
			decision_notes = $6,
			verifier_id = $7,
			decided_at = $8,
			updated_at = $9,
			version = version + 1
		WHERE report_id = $10 AND version = $11`

	result, err := tx.ExecContext(ctx, query,
		review.Status, review.Priority, review.Checklist, review.Calculation,
		review.MetricRecordID, review.DecisionNotes, review.VerifierID,
		review.DecidedAt, time.Now(), review.ReportID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Either the report does not exist or another writer advanced it
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM report_reviews WHERE report_id = $1)`,
			review.ReportID); err != nil {
			return fmt.Errorf("failed to check review existence: %w", err)
		}
		if !exists {
			return ErrReviewNotFound
		}
		return ErrStaleVersion
	}

	if outbox != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credit_issuance_outbox (report_id, net_credits, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (report_id) DO NOTHING`,
			outbox.ReportID, outbox.NetCredits, outbox.CreatedAt); err != nil {
			return fmt.Errorf("failed to enqueue issuance request: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review update: %w", err)
	}

	review.Version = expectedVersion + 1
	return nil
}

// ListActiveReviews returns all reviews awaiting a decision
func (r *PostgresRepository) ListActiveReviews(ctx context.Context) ([]*Review, error) {
	var reviews []*Review
	query := `
		SELECT * FROM report_reviews
		WHERE status IN ($1, $2)
		ORDER BY submitted_at ASC`
	if err := r.db.SelectContext(ctx, &reviews, query, StatusSubmitted, StatusUnderReview); err != nil {
		return nil, fmt.Errorf("failed to list active reviews: %w", err)
	}
	return reviews, nil
}

// PendingIssuance returns unsent issuance requests, oldest first
func (r *PostgresRepository) PendingIssuance(ctx context.Context, limit int) ([]issuance.Request, error) {
	var requests []issuance.Request
	query := `
		SELECT report_id, net_credits, created_at, published_at
		FROM credit_issuance_outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`
	if err := r.db.SelectContext(ctx, &requests, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list pending issuance requests: %w", err)
	}
	return requests, nil
}

// MarkIssuancePublished records a successful delivery
func (r *PostgresRepository) MarkIssuancePublished(ctx context.Context, reportID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE credit_issuance_outbox SET published_at = $1
		 WHERE report_id = $2 AND published_at IS NULL`,
		time.Now(), reportID)
	if err != nil {
		return fmt.Errorf("failed to mark issuance published: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		// Already marked by an earlier run; harmless
		return nil
	}
	return nil
}
