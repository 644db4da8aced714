package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/credits"
	"carbon-market/mrv-backend/internal/issuance"
	"carbon-market/mrv-backend/internal/metrics"
	"carbon-market/mrv-backend/internal/monitoring"
	"carbon-market/mrv-backend/internal/notifications"
	"carbon-market/mrv-backend/pkg/storage"
)

// RecordSource provides read access to submitted metric records
type RecordSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*monitoring.MetricRecord, error)
	GetByReportID(ctx context.Context, reportID uuid.UUID) (*monitoring.MetricRecord, error)
}

// Service coordinates the verification workflow: calculation, checklist
// review, guarded decisions and post-commit event emission
type Service struct {
	repo      Repository
	records   RecordSource
	assessors *assessment.Registry
	stateMach *StateMachine
	publisher issuance.Publisher
	notifier  notifications.Notifier
	logger    *zap.Logger
}

// NewService creates a new verification service
func NewService(repo Repository, records RecordSource, assessors *assessment.Registry,
	publisher issuance.Publisher, notifier notifications.Notifier, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		records:   records,
		assessors: assessors,
		stateMach: NewStateMachine(),
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
	}
}

// =====================================================
// Calculation
// =====================================================

// Calculate derives the credit count for a metric record. It is read-only
// and idempotent; callers may run it concurrently without locking.
func (s *Service) Calculate(ctx context.Context, record *monitoring.MetricRecord) (*credits.Result, error) {
	factors, err := s.assessors.Assess(ctx, record)
	if err != nil {
		return nil, err
	}
	result, err := credits.Compute(record, factors)
	if err != nil {
		return nil, err
	}
	metrics.CalculationsTotal.WithLabelValues(record.MethodologyCode).Inc()
	return result, nil
}

// CalculateForReport runs the calculation for the record backing a report
func (s *Service) CalculateForReport(ctx context.Context, reportID uuid.UUID) (*credits.Result, error) {
	record, err := s.records.GetByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return s.Calculate(ctx, record)
}

// =====================================================
// Workflow
// =====================================================

// SubmitRequest enters a report into the verification pipeline
type SubmitRequest struct {
	ReportID         uuid.UUID `json:"report_id" binding:"required"`
	ProjectName      string    `json:"project_name" binding:"required"`
	OrganizationName string    `json:"organization_name"`
	Priority         Priority  `json:"priority"`
}

// Submit creates the review for a report: the calculation is run once and
// stored with the review, which starts in Submitted.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*Review, error) {
	record, err := s.records.GetByReportID(ctx, req.ReportID)
	if err != nil {
		return nil, fmt.Errorf("metric record lookup failed: %w", err)
	}

	result, err := s.Calculate(ctx, record)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now()
	review := &Review{
		ID:               uuid.New(),
		ReportID:         req.ReportID,
		ProjectID:        record.ProjectID,
		MetricRecordID:   record.ID,
		ProjectName:      req.ProjectName,
		OrganizationName: req.OrganizationName,
		MethodologyCode:  record.MethodologyCode,
		Status:           StatusSubmitted,
		Priority:         priority,
		Calculation:      Calculation{Result: *result},
		SubmittedAt:      now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.logger.Info("Report submitted for verification",
		zap.String("report_id", review.ReportID.String()),
		zap.String("methodology", review.MethodologyCode),
		zap.Int("net_credits", result.NetCredits))
	return review, nil
}

// StartReview moves a submitted report under review and instantiates its
// checklist. Calling it on a report already under review is a no-op.
func (s *Service) StartReview(ctx context.Context, reportID uuid.UUID, verifierID uuid.UUID) (*Review, error) {
	review, err := s.repo.GetReviewByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if review.Status == StatusUnderReview {
		return review, nil
	}
	if !s.stateMach.CanTransition(review.Status, StatusUnderReview) {
		return nil, &InvalidTransitionError{From: review.Status, To: StatusUnderReview}
	}

	updated := *review
	updated.Status = StatusUnderReview
	if len(updated.Checklist) == 0 {
		updated.Checklist = NewChecklist(review.MethodologyCode)
	}

	if err := s.update(ctx, &updated, review.Version, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Review started",
		zap.String("report_id", reportID.String()),
		zap.String("verifier_id", verifierID.String()))
	return &updated, nil
}

// UpdateItemRequest changes one checklist item on an open review
type UpdateItemRequest struct {
	ItemID          string     `json:"item_id" binding:"required"`
	Status          ItemStatus `json:"status" binding:"required"`
	Notes           string     `json:"notes"`
	EvidenceCIDs    []string   `json:"evidence_cids"`
	VerifierID      uuid.UUID  `json:"-"`
	ExpectedVersion int        `json:"expected_version"`
}

// UpdateChecklistItem transitions a checklist item. Item statuses stay
// reversible until the review reaches a terminal decision, at which point
// the checklist is frozen.
func (s *Service) UpdateChecklistItem(ctx context.Context, reportID uuid.UUID, req *UpdateItemRequest) (*Review, error) {
	review, err := s.repo.GetReviewByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if review.Status != StatusUnderReview {
		return nil, &InvalidTransitionError{From: review.Status, To: StatusUnderReview}
	}
	if err := storage.ValidateCIDs(req.EvidenceCIDs); err != nil {
		return nil, fmt.Errorf("invalid evidence reference: %w", err)
	}

	checklist, err := review.Checklist.WithItemStatus(
		req.ItemID, req.Status, req.Notes, req.EvidenceCIDs, req.VerifierID, time.Now())
	if err != nil {
		return nil, err
	}

	updated := *review
	updated.Checklist = checklist
	if err := s.update(ctx, &updated, req.ExpectedVersion, nil); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DecisionRequest carries a reviewer's verdict
type DecisionRequest struct {
	Decision        Decision  `json:"decision" binding:"required"`
	Notes           string    `json:"notes"`
	VerifierID      uuid.UUID `json:"-"`
	ExpectedVersion int       `json:"expected_version"`
}

// Decide applies a terminal or info-request decision. Terminal decisions are
// one-way; repeating the same decision on a decided report is a no-op
// success so retried calls cannot double-mint or double-reject. No error
// path leaves the review partially updated.
func (s *Service) Decide(ctx context.Context, reportID uuid.UUID, req *DecisionRequest) (*Review, error) {
	target, err := decisionTarget(req.Decision)
	if err != nil {
		return nil, err
	}

	review, err := s.repo.GetReviewByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if review.Status.IsTerminal() {
		if review.Status == target {
			// Idempotent repeat of the decision already taken
			return review, nil
		}
		return nil, &InvalidTransitionError{From: review.Status, To: target}
	}
	if !s.stateMach.CanTransition(review.Status, target) {
		return nil, &InvalidTransitionError{From: review.Status, To: target}
	}

	switch req.Decision {
	case DecisionApprove:
		if blocking := s.approvalBlockers(review); len(blocking) > 0 {
			return nil, &IncompleteVerificationError{Blocking: blocking}
		}
	case DecisionReject, DecisionRequestInfo:
		if req.Notes == "" {
			return nil, ErrNotesRequired
		}
	}

	now := time.Now()
	updated := *review
	updated.Status = target
	updated.DecisionNotes = req.Notes
	updated.VerifierID = &req.VerifierID
	if target.IsTerminal() {
		updated.DecidedAt = &now
	}

	var outbox *issuance.Request
	if target == StatusApproved {
		outbox = &issuance.Request{
			ReportID:   review.ReportID,
			NetCredits: review.Calculation.NetCredits,
			CreatedAt:  now,
		}
	}

	if err := s.update(ctx, &updated, req.ExpectedVersion, outbox); err != nil {
		return nil, err
	}

	metrics.DecisionsTotal.WithLabelValues(string(req.Decision)).Inc()
	if outbox != nil {
		metrics.IssuanceEnqueued.Inc()
		s.deliverIssuance(ctx, *outbox)
	}
	s.notifyDecision(ctx, &updated, req.Decision)

	s.logger.Info("Review decided",
		zap.String("report_id", reportID.String()),
		zap.String("decision", string(req.Decision)),
		zap.String("verifier_id", req.VerifierID.String()))
	return &updated, nil
}

// ResubmitRequest loops an info-requested report back under review with a
// corrected metric record
type ResubmitRequest struct {
	NewRecordID     uuid.UUID `json:"new_record_id" binding:"required"`
	ExpectedVersion int       `json:"expected_version"`
}

// Resubmit attaches the corrected record, reruns the calculation and moves
// the review back to UnderReview. The prior record stays in the chain via
// the new record's SupersedesID; history is never mutated.
func (s *Service) Resubmit(ctx context.Context, reportID uuid.UUID, req *ResubmitRequest) (*Review, error) {
	review, err := s.repo.GetReviewByReportID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if review.Status != StatusInfoRequested {
		return nil, &InvalidTransitionError{From: review.Status, To: StatusUnderReview}
	}

	record, err := s.records.GetByID(ctx, req.NewRecordID)
	if err != nil {
		return nil, fmt.Errorf("metric record lookup failed: %w", err)
	}
	if record.ProjectID != review.ProjectID {
		return nil, fmt.Errorf("record %s belongs to a different project", record.ID)
	}
	if record.SupersedesID == nil || *record.SupersedesID != review.MetricRecordID {
		return nil, fmt.Errorf("record %s does not supersede the reviewed record", record.ID)
	}

	result, err := s.Calculate(ctx, record)
	if err != nil {
		return nil, err
	}

	updated := *review
	updated.Status = StatusUnderReview
	updated.MetricRecordID = record.ID
	updated.Calculation = Calculation{Result: *result}
	updated.DecisionNotes = ""

	if err := s.update(ctx, &updated, req.ExpectedVersion, nil); err != nil {
		return nil, err
	}

	s.logger.Info("Report resubmitted",
		zap.String("report_id", reportID.String()),
		zap.String("record_id", record.ID.String()),
		zap.Int("net_credits", result.NetCredits))
	return &updated, nil
}

// GetReview returns the current review state for a report
func (s *Service) GetReview(ctx context.Context, reportID uuid.UUID) (*Review, error) {
	return s.repo.GetReviewByReportID(ctx, reportID)
}

// ListQueue projects reviews awaiting attention into a prioritized queue
func (s *Service) ListQueue(ctx context.Context, filter QueueFilter) ([]QueueEntry, error) {
	reviews, err := s.repo.ListActiveReviews(ctx)
	if err != nil {
		return nil, err
	}
	return BuildQueue(reviews, filter, time.Now()), nil
}

// =====================================================
// Internals
// =====================================================

func decisionTarget(d Decision) (ReviewStatus, error) {
	switch d {
	case DecisionApprove:
		return StatusApproved, nil
	case DecisionReject:
		return StatusRejected, nil
	case DecisionRequestInfo:
		return StatusInfoRequested, nil
	}
	return "", fmt.Errorf("unknown decision: %s", d)
}

// approvalBlockers lists everything standing between the review and approval
func (s *Service) approvalBlockers(review *Review) []string {
	blocking := review.Checklist.BlockingItems()
	if len(review.Checklist) == 0 {
		blocking = append(blocking, "checklist not instantiated")
	}
	if review.Calculation.NetCredits <= 0 {
		blocking = append(blocking, "net credits must be positive")
	}
	return blocking
}

func (s *Service) update(ctx context.Context, review *Review, expectedVersion int, outbox *issuance.Request) error {
	err := s.repo.UpdateReview(ctx, review, expectedVersion, outbox)
	if errors.Is(err, ErrStaleVersion) {
		metrics.DecisionConflicts.Inc()
	}
	return err
}

// deliverIssuance attempts immediate delivery of a freshly enqueued request.
// Failures are left in the outbox for the dispatcher worker to retry; the
// decision itself has already committed and is never re-run.
func (s *Service) deliverIssuance(ctx context.Context, req issuance.Request) {
	if err := s.publisher.Publish(ctx, req); err != nil {
		s.logger.Warn("Immediate issuance delivery failed, deferring to dispatcher",
			zap.String("report_id", req.ReportID.String()),
			zap.Error(err))
		return
	}
	metrics.IssuancePublished.Inc()
	if err := s.repo.MarkIssuancePublished(ctx, req.ReportID); err != nil {
		s.logger.Error("Failed to mark issuance published",
			zap.String("report_id", req.ReportID.String()),
			zap.Error(err))
	}
}

func (s *Service) notifyDecision(ctx context.Context, review *Review, decision Decision) {
	if s.notifier == nil {
		return
	}
	eventType := notifications.EventInfoRequested
	switch decision {
	case DecisionApprove:
		eventType = notifications.EventApproved
	case DecisionReject:
		eventType = notifications.EventRejected
	}
	var verifier uuid.UUID
	if review.VerifierID != nil {
		verifier = *review.VerifierID
	}
	s.notifier.NotifyDecision(ctx, notifications.DecisionEvent{
		Type:        eventType,
		ReportID:    review.ReportID,
		ProjectID:   review.ProjectID,
		ProjectName: review.ProjectName,
		VerifierID:  verifier,
		NetCredits:  review.Calculation.NetCredits,
		Notes:       review.DecisionNotes,
		OccurredAt:  time.Now(),
	})
}
