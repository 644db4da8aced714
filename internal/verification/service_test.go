package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-market/mrv-backend/internal/assessment"
	"carbon-market/mrv-backend/internal/issuance"
	"carbon-market/mrv-backend/internal/monitoring"
	"carbon-market/mrv-backend/internal/notifications"
)

// memoryRepo implements Repository with real version semantics so the
// optimistic concurrency paths are exercised end to end
type memoryRepo struct {
	mu      sync.Mutex
	reviews map[uuid.UUID]*Review
	outbox  map[uuid.UUID]*issuance.Request
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		reviews: make(map[uuid.UUID]*Review),
		outbox:  make(map[uuid.UUID]*issuance.Request),
	}
}

func cloneReview(r *Review) *Review {
	c := *r
	c.Checklist = append(Checklist(nil), r.Checklist...)
	return &c
}

func (m *memoryRepo) CreateReview(ctx context.Context, review *Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reviews[review.ReportID]; exists {
		return assert.AnError
	}
	review.Version = 1
	m.reviews[review.ReportID] = cloneReview(review)
	return nil
}

func (m *memoryRepo) GetReviewByReportID(ctx context.Context, reportID uuid.UUID) (*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.reviews[reportID]
	if !exists {
		return nil, ErrReviewNotFound
	}
	return cloneReview(stored), nil
}

func (m *memoryRepo) UpdateReview(ctx context.Context, review *Review, expectedVersion int, outbox *issuance.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.reviews[review.ReportID]
	if !exists {
		return ErrReviewNotFound
	}
	if stored.Version != expectedVersion {
		return ErrStaleVersion
	}
	updated := cloneReview(review)
	updated.Version = expectedVersion + 1
	m.reviews[review.ReportID] = updated
	review.Version = updated.Version
	if outbox != nil {
		if _, exists := m.outbox[outbox.ReportID]; !exists {
			req := *outbox
			m.outbox[outbox.ReportID] = &req
		}
	}
	return nil
}

func (m *memoryRepo) ListActiveReviews(ctx context.Context) ([]*Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []*Review
	for _, r := range m.reviews {
		if r.Status == StatusSubmitted || r.Status == StatusUnderReview {
			active = append(active, cloneReview(r))
		}
	}
	return active, nil
}

func (m *memoryRepo) PendingIssuance(ctx context.Context, limit int) ([]issuance.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []issuance.Request
	for _, req := range m.outbox {
		if req.PublishedAt == nil && len(pending) < limit {
			pending = append(pending, *req)
		}
	}
	return pending, nil
}

func (m *memoryRepo) MarkIssuancePublished(ctx context.Context, reportID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req, exists := m.outbox[reportID]; exists && req.PublishedAt == nil {
		now := time.Now()
		req.PublishedAt = &now
	}
	return nil
}

type fakeRecords struct {
	byID     map[uuid.UUID]*monitoring.MetricRecord
	byReport map[uuid.UUID]*monitoring.MetricRecord
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		byID:     make(map[uuid.UUID]*monitoring.MetricRecord),
		byReport: make(map[uuid.UUID]*monitoring.MetricRecord),
	}
}

func (f *fakeRecords) add(record *monitoring.MetricRecord) {
	f.byID[record.ID] = record
	f.byReport[record.ReportID] = record
}

func (f *fakeRecords) GetByID(ctx context.Context, id uuid.UUID) (*monitoring.MetricRecord, error) {
	record, exists := f.byID[id]
	if !exists {
		return nil, monitoring.ErrRecordNotFound
	}
	return record, nil
}

func (f *fakeRecords) GetByReportID(ctx context.Context, reportID uuid.UUID) (*monitoring.MetricRecord, error) {
	record, exists := f.byReport[reportID]
	if !exists {
		return nil, monitoring.ErrRecordNotFound
	}
	return record, nil
}

type countingPublisher struct {
	mu        sync.Mutex
	published []issuance.Request
}

func (p *countingPublisher) Publish(ctx context.Context, req issuance.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, req)
	return nil
}

func (p *countingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []notifications.DecisionEvent
}

func (n *captureNotifier) NotifyDecision(ctx context.Context, event notifications.DecisionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type testEnv struct {
	svc       *Service
	repo      *memoryRepo
	records   *fakeRecords
	publisher *countingPublisher
	notifier  *captureNotifier
	verifier  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      newMemoryRepo(),
		records:   newFakeRecords(),
		publisher: &countingPublisher{},
		notifier:  &captureNotifier{},
		verifier:  uuid.New(),
	}
	env.svc = NewService(env.repo, env.records, assessment.NewRegistry(),
		env.publisher, env.notifier, zap.NewNop())
	return env
}

func fptr(v float64) *float64 { return &v }

func (env *testEnv) newForestryRecord(t *testing.T, rate float64) *monitoring.MetricRecord {
	t.Helper()
	record := &monitoring.MetricRecord{
		ID:                      uuid.New(),
		ProjectID:               uuid.New(),
		ReportID:                uuid.New(),
		MethodologyCode:         "VM-FOR",
		SequestrationRatePerDay: rate,
		DurationMonths:          3,
	}
	require.NoError(t, record.SetSecondary(&monitoring.SecondaryMetrics{
		BiodiversityIndex: fptr(0.8),
		SoilHealthIndex:   fptr(0.7),
	}))
	env.records.add(record)
	return record
}

// submitUnderReview moves a fresh report into UnderReview and returns it
func (env *testEnv) submitUnderReview(t *testing.T, rate float64) *Review {
	t.Helper()
	ctx := context.Background()
	record := env.newForestryRecord(t, rate)

	_, err := env.svc.Submit(ctx, &SubmitRequest{
		ReportID:    record.ReportID,
		ProjectName: "Forest Revival",
		Priority:    PriorityHigh,
	})
	require.NoError(t, err)

	review, err := env.svc.StartReview(ctx, record.ReportID, env.verifier)
	require.NoError(t, err)
	return review
}

// verifyAllRequired walks the checklist verifying every required item
func (env *testEnv) verifyAllRequired(t *testing.T, reportID uuid.UUID) *Review {
	t.Helper()
	ctx := context.Background()
	review, err := env.svc.GetReview(ctx, reportID)
	require.NoError(t, err)

	for _, item := range review.Checklist {
		if !item.Required {
			continue
		}
		review, err = env.svc.UpdateChecklistItem(ctx, reportID, &UpdateItemRequest{
			ItemID:          item.ID,
			Status:          ItemVerified,
			Notes:           "checked",
			VerifierID:      env.verifier,
			ExpectedVersion: review.Version,
		})
		require.NoError(t, err)
	}
	return review
}

func TestSubmitCreatesReviewWithCalculation(t *testing.T) {
	env := newTestEnv(t)
	record := env.newForestryRecord(t, 2.4)

	review, err := env.svc.Submit(context.Background(), &SubmitRequest{
		ReportID:    record.ReportID,
		ProjectName: "Forest Revival",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, review.Status)
	assert.Equal(t, PriorityMedium, review.Priority)
	assert.Equal(t, 1, review.Version)
	assert.Greater(t, review.Calculation.NetCredits, 0)
	assert.LessOrEqual(t, review.Calculation.NetCredits, review.Calculation.GrossCredits)
	assert.Len(t, review.Calculation.Reasoning, 6)
}

func TestStartReviewInstantiatesChecklistAndIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)

	assert.Equal(t, StatusUnderReview, review.Status)
	assert.NotEmpty(t, review.Checklist)

	again, err := env.svc.StartReview(context.Background(), review.ReportID, env.verifier)
	require.NoError(t, err)
	assert.Equal(t, review.Version, again.Version, "repeat start must not advance the version")
}

func TestApproveBlockedUntilChecklistComplete(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	_, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionApprove,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	var incomplete *IncompleteVerificationError
	require.ErrorAs(t, err, &incomplete)
	assert.NotEmpty(t, incomplete.Blocking)

	// Guard failure must not mutate state or emit anything
	reloaded, err := env.svc.GetReview(ctx, review.ReportID)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, reloaded.Status)
	assert.Equal(t, review.Version, reloaded.Version)
	assert.Zero(t, env.publisher.count())
}

func TestFlaggedItemBlocksApprovalButNotRejection(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	review = env.verifyAllRequired(t, review.ReportID)
	review, err := env.svc.UpdateChecklistItem(ctx, review.ReportID, &UpdateItemRequest{
		ItemID:          "baseline-justified",
		Status:          ItemFlagged,
		Notes:           "baseline study outdated",
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)

	_, err = env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionApprove,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	var incomplete *IncompleteVerificationError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Blocking, "baseline-justified (flagged)")

	decided, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionReject,
		Notes:           "quality concerns",
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, decided.Status)
	assert.NotNil(t, decided.DecidedAt)
}

func TestApproveEmitsIssuanceExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	review = env.verifyAllRequired(t, review.ReportID)
	decided, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionApprove,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, decided.Status)
	require.Equal(t, 1, env.publisher.count())
	assert.Equal(t, review.ReportID, env.publisher.published[0].ReportID)
	assert.Equal(t, decided.Calculation.NetCredits, env.publisher.published[0].NetCredits)

	// A retried approval is a no-op success, not a second emission
	again, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionApprove,
		VerifierID:      env.verifier,
		ExpectedVersion: decided.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, again.Status)
	assert.Equal(t, 1, env.publisher.count())
	assert.Len(t, env.notifier.events, 1)

	// A different decision on a decided report is rejected
	_, err = env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionReject,
		Notes:           "changed my mind",
		VerifierID:      env.verifier,
		ExpectedVersion: decided.Version,
	})
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)
}

func TestApproveBlockedWhenNetCreditsZero(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 0)
	ctx := context.Background()

	review = env.verifyAllRequired(t, review.ReportID)
	_, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionApprove,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	var incomplete *IncompleteVerificationError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Blocking, "net credits must be positive")
}

func TestRejectRequiresNotes(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)

	_, err := env.svc.Decide(context.Background(), review.ReportID, &DecisionRequest{
		Decision:        DecisionReject,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	assert.ErrorIs(t, err, ErrNotesRequired)
}

func TestStaleVersionLosesTheRace(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	// Two reviewers read the same version
	first := &UpdateItemRequest{
		ItemID:          "methodology-applied",
		Status:          ItemVerified,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	}
	second := &UpdateItemRequest{
		ItemID:          "baseline-justified",
		Status:          ItemFlagged,
		Notes:           "needs the new study",
		VerifierID:      uuid.New(),
		ExpectedVersion: review.Version,
	}

	_, err := env.svc.UpdateChecklistItem(ctx, review.ReportID, first)
	require.NoError(t, err)

	_, err = env.svc.UpdateChecklistItem(ctx, review.ReportID, second)
	assert.ErrorIs(t, err, ErrStaleVersion)

	// The loser's edit must not have been applied
	reloaded, err := env.svc.GetReview(ctx, review.ReportID)
	require.NoError(t, err)
	for _, item := range reloaded.Checklist {
		if item.ID == "baseline-justified" {
			assert.Equal(t, ItemPending, item.Status)
		}
	}
}

func TestRequestInfoAndResubmitLoop(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	review, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionRequestInfo,
		Notes:           "sequestration rate lacks ground truthing",
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusInfoRequested, review.Status)
	assert.Nil(t, review.DecidedAt)

	// Checklist edits are closed while waiting for information
	_, err = env.svc.UpdateChecklistItem(ctx, review.ReportID, &UpdateItemRequest{
		ItemID:          "methodology-applied",
		Status:          ItemVerified,
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	var invalid *InvalidTransitionError
	assert.ErrorAs(t, err, &invalid)

	// The reporting party submits a corrected record superseding the first
	original := env.records.byReport[review.ReportID]
	corrected := &monitoring.MetricRecord{
		ID:                      uuid.New(),
		ProjectID:               review.ProjectID,
		ReportID:                uuid.New(),
		MethodologyCode:         "VM-FOR",
		SequestrationRatePerDay: 3.1,
		DurationMonths:          3,
		SupersedesID:            &original.ID,
	}
	require.NoError(t, corrected.SetSecondary(&monitoring.SecondaryMetrics{
		BiodiversityIndex: fptr(0.8),
		SoilHealthIndex:   fptr(0.7),
	}))
	env.records.add(corrected)

	resumed, err := env.svc.Resubmit(ctx, review.ReportID, &ResubmitRequest{
		NewRecordID:     corrected.ID,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, resumed.Status)
	assert.Equal(t, corrected.ID, resumed.MetricRecordID)
	assert.Greater(t, resumed.Calculation.NetCredits, review.Calculation.NetCredits)
}

func TestResubmitRejectsUnrelatedRecord(t *testing.T) {
	env := newTestEnv(t)
	review := env.submitUnderReview(t, 2.4)
	ctx := context.Background()

	review, err := env.svc.Decide(ctx, review.ReportID, &DecisionRequest{
		Decision:        DecisionRequestInfo,
		Notes:           "missing soil data",
		VerifierID:      env.verifier,
		ExpectedVersion: review.Version,
	})
	require.NoError(t, err)

	// A record that does not supersede the reviewed one is refused
	unrelated := env.newForestryRecord(t, 5.0)
	_, err = env.svc.Resubmit(ctx, review.ReportID, &ResubmitRequest{
		NewRecordID:     unrelated.ID,
		ExpectedVersion: review.Version,
	})
	assert.Error(t, err)
}

func TestListQueueProjection(t *testing.T) {
	env := newTestEnv(t)
	env.submitUnderReview(t, 2.4)
	env.submitUnderReview(t, 1.1)

	entries, err := env.svc.ListQueue(context.Background(), QueueFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, StatusUnderReview, entry.Status)
	}
}
