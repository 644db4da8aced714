package settings

import (
	"time"

	"github.com/google/uuid"
)

// Preferences holds a verifier's personal workspace settings: which decision
// events they want pushed and how their queue is filtered by default.
type Preferences struct {
	VerifierID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"verifier_id"`
	NotifyApproved       bool      `json:"notify_approved"`
	NotifyRejected       bool      `json:"notify_rejected"`
	NotifyInfoRequested  bool      `json:"notify_info_requested"`
	DefaultQueuePriority string    `gorm:"size:16" json:"default_queue_priority,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName overrides the gorm table name
func (Preferences) TableName() string {
	return "verifier_preferences"
}

// DefaultPreferences returns the settings applied before a verifier has
// saved anything: all notifications on, no default queue filter.
func DefaultPreferences(verifierID uuid.UUID) *Preferences {
	return &Preferences{
		VerifierID:          verifierID,
		NotifyApproved:      true,
		NotifyRejected:      true,
		NotifyInfoRequested: true,
	}
}
