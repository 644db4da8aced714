package verification

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"carbon-market/mrv-backend/internal/credits"
)

// =====================================================
// Enums and Constants
// =====================================================

// ReviewStatus represents the approval lifecycle state of a report
type ReviewStatus string

const (
	StatusSubmitted     ReviewStatus = "submitted"
	StatusUnderReview   ReviewStatus = "under_review"
	StatusApproved      ReviewStatus = "approved"
	StatusRejected      ReviewStatus = "rejected"
	StatusInfoRequested ReviewStatus = "info_requested"
)

// IsTerminal reports whether the status permits no further transitions
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority affects queue ordering only
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns the priority sort weight (higher sorts first)
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ItemStatus is the review state of one checklist item
type ItemStatus string

const (
	ItemPending  ItemStatus = "pending"
	ItemVerified ItemStatus = "verified"
	ItemFlagged  ItemStatus = "flagged"
)

// Decision is a reviewer's verdict on a report under review
type Decision string

const (
	DecisionApprove     Decision = "approve"
	DecisionReject      Decision = "reject"
	DecisionRequestInfo Decision = "request_info"
)

// =====================================================
// Errors
// =====================================================

var (
	// ErrReviewNotFound is returned when no review matches the report
	ErrReviewNotFound = errors.New("review not found")

	// ErrStaleVersion signals a concurrent edit: the stored version advanced
	// past the version the caller read. Reload and retry.
	ErrStaleVersion = errors.New("review was updated by someone else, please refresh")

	// ErrNotesRequired is returned when a rejection or information request
	// carries no explanatory notes
	ErrNotesRequired = errors.New("decision notes are required")
)

// IncompleteVerificationError blocks approval until every required checklist
// item is verified and the calculation nets positive credits.
type IncompleteVerificationError struct {
	Blocking []string
}

func (e *IncompleteVerificationError) Error() string {
	return fmt.Sprintf("verification incomplete: %s", strings.Join(e.Blocking, "; "))
}

// InvalidTransitionError is returned for transitions the workflow does not
// permit, e.g. deciding an already-rejected report differently.
type InvalidTransitionError struct {
	From ReviewStatus
	To   ReviewStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// =====================================================
// Models
// =====================================================

// ChecklistItem is one discrete verification requirement. Items on open
// reviews are mutable; once the review reaches a terminal decision the
// checklist is frozen as part of the audit trail.
type ChecklistItem struct {
	ID           string     `json:"id"`
	Category     string     `json:"category"`
	Description  string     `json:"description"`
	Required     bool       `json:"required"`
	Status       ItemStatus `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	EvidenceCIDs []string   `json:"evidence_cids,omitempty"`
	UpdatedBy    *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Checklist is the ordered set of items gating a report's approval
type Checklist []ChecklistItem

// Value implements driver.Valuer for JSONB storage
func (c Checklist) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for JSONB storage
func (c *Checklist) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Checklist", value)
	}
	return json.Unmarshal(data, c)
}

// Calculation wraps a credit calculation result for JSONB storage
type Calculation struct {
	credits.Result
}

// Value implements driver.Valuer for JSONB storage
func (c Calculation) Value() (driver.Value, error) {
	return json.Marshal(c.Result)
}

// Scan implements sql.Scanner for JSONB storage
func (c *Calculation) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	data, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into Calculation", value)
	}
	return json.Unmarshal(data, &c.Result)
}

// Review is the persisted workflow state for one report. Every review owns
// exactly one calculation and one checklist. Version backs the optimistic
// concurrency discipline: writers supply the version they read and lose with
// ErrStaleVersion if the row advanced underneath them.
type Review struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	ReportID         uuid.UUID    `db:"report_id" json:"report_id"`
	ProjectID        uuid.UUID    `db:"project_id" json:"project_id"`
	MetricRecordID   uuid.UUID    `db:"metric_record_id" json:"metric_record_id"`
	ProjectName      string       `db:"project_name" json:"project_name"`
	OrganizationName string       `db:"organization_name" json:"organization_name"`
	MethodologyCode  string       `db:"methodology_code" json:"methodology_code"`
	Status           ReviewStatus `db:"status" json:"status"`
	Priority         Priority     `db:"priority" json:"priority"`
	Calculation      Calculation  `db:"calculation" json:"calculation"`
	Checklist        Checklist    `db:"checklist" json:"checklist"`
	DecisionNotes    string       `db:"decision_notes" json:"decision_notes,omitempty"`
	VerifierID       *uuid.UUID   `db:"verifier_id" json:"verifier_id,omitempty"`
	DecidedAt        *time.Time   `db:"decided_at" json:"decided_at,omitempty"`
	SubmittedAt      time.Time    `db:"submitted_at" json:"submitted_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
	Version          int          `db:"version" json:"version"`
}

// DaysWaiting is the whole number of days since submission
func (r *Review) DaysWaiting(now time.Time) int {
	days := int(now.Sub(r.SubmittedAt).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
