package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies the decision a review reached
type EventType string

const (
	EventApproved      EventType = "report_approved"
	EventRejected      EventType = "report_rejected"
	EventInfoRequested EventType = "report_info_requested"
)

// DecisionEvent is emitted when a review transitions out of UnderReview.
// Delivery is best-effort: no acknowledgment is required and a lost event
// never blocks or reverses the decision itself.
type DecisionEvent struct {
	Type        EventType `json:"type"`
	ReportID    uuid.UUID `json:"report_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	ProjectName string    `json:"project_name"`
	VerifierID  uuid.UUID `json:"verifier_id"`
	NetCredits  int       `json:"net_credits"`
	Notes       string    `json:"notes,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier receives decision events for fan-out to external subscribers
type Notifier interface {
	NotifyDecision(ctx context.Context, event DecisionEvent)
}

// LogNotifier records decision events to the application log
type LogNotifier struct {
	Logger *zap.Logger
}

// NotifyDecision logs the event
func (n *LogNotifier) NotifyDecision(ctx context.Context, event DecisionEvent) {
	n.Logger.Info("Review decision",
		zap.String("event", string(event.Type)),
		zap.String("report_id", event.ReportID.String()),
		zap.String("verifier_id", event.VerifierID.String()))
}

// MultiNotifier fans one event out to several notifiers
type MultiNotifier []Notifier

// NotifyDecision delivers the event to every notifier in order
func (m MultiNotifier) NotifyDecision(ctx context.Context, event DecisionEvent) {
	for _, n := range m {
		n.NotifyDecision(ctx, event)
	}
}
