package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/notifications"
	"carbon-market/mrv-backend/internal/verification"
	"carbon-market/mrv-backend/pkg/storage"
)

// Archiver listens for terminal decisions and writes the rendered statement
// to the object store. It implements notifications.Notifier so it plugs into
// the same fan-out as the WebSocket push; archival is best-effort and never
// affects the decision.
type Archiver struct {
	reviews ReviewSource
	store   storage.ObjectStore
	logger  *zap.Logger
}

// ReviewSource loads the review to archive; the verification repository
// satisfies it directly
type ReviewSource interface {
	GetReviewByReportID(ctx context.Context, reportID uuid.UUID) (*verification.Review, error)
}

// NewArchiver creates a statement archiver
func NewArchiver(reviews ReviewSource, store storage.ObjectStore, logger *zap.Logger) *Archiver {
	return &Archiver{reviews: reviews, store: store, logger: logger}
}

// NotifyDecision archives the statement for terminal decisions
func (a *Archiver) NotifyDecision(ctx context.Context, event notifications.DecisionEvent) {
	if event.Type != notifications.EventApproved && event.Type != notifications.EventRejected {
		return
	}

	review, err := a.reviews.GetReviewByReportID(ctx, event.ReportID)
	if err != nil {
		a.logger.Error("Failed to load review for statement archive",
			zap.String("report_id", event.ReportID.String()),
			zap.Error(err))
		return
	}

	var buf bytes.Buffer
	if err := WriteStatementPDF(&buf, review); err != nil {
		a.logger.Error("Failed to render statement for archive",
			zap.String("report_id", event.ReportID.String()),
			zap.Error(err))
		return
	}

	key := StatementKey(review)
	if err := a.store.Put(ctx, key, &buf, "application/pdf"); err != nil {
		a.logger.Error("Failed to archive statement",
			zap.String("report_id", event.ReportID.String()),
			zap.String("key", key),
			zap.Error(err))
		return
	}
	a.logger.Info("Statement archived",
		zap.String("report_id", event.ReportID.String()),
		zap.String("key", key))
}

// StatementKey is the object key a review's statement is archived under
func StatementKey(review *verification.Review) string {
	return fmt.Sprintf("statements/%s/%s.pdf", review.ProjectID, review.ReportID)
}
