package verification

// StateMachine enforces review status transitions. Approved and Rejected are
// terminal: they permit no outgoing transitions, which is what makes the
// issuance emission at-most-once. InfoRequested loops back to UnderReview
// when the reporting party resubmits a corrected metric record.
type StateMachine struct {
	allowedTransitions map[ReviewStatus][]ReviewStatus
}

// NewStateMachine creates a state machine with the review transition table
func NewStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[ReviewStatus][]ReviewStatus{
			StatusSubmitted:     {StatusUnderReview},
			StatusUnderReview:   {StatusApproved, StatusRejected, StatusInfoRequested},
			StatusInfoRequested: {StatusUnderReview},
			StatusApproved:      {},
			StatusRejected:      {},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to ReviewStatus) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from ReviewStatus) []ReviewStatus {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []ReviewStatus{}
	}
	return allowed
}
