package verification

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueueEntry is a read-only summary of one review awaiting attention
type QueueEntry struct {
	ReportID          uuid.UUID    `json:"report_id"`
	ProjectID         uuid.UUID    `json:"project_id"`
	ProjectName       string       `json:"project_name"`
	OrganizationName  string       `json:"organization_name"`
	MethodologyCode   string       `json:"methodology_code"`
	Status            ReviewStatus `json:"status"`
	Priority          Priority     `json:"priority"`
	NetCredits        int          `json:"net_credits"`
	ConfidencePercent int          `json:"confidence_percent"`
	SubmittedAt       time.Time    `json:"submitted_at"`
	DaysWaiting       int          `json:"days_waiting"`
	Version           int          `json:"version"`
}

// QueueFilter narrows the review queue. Query matches project and
// organization names case-insensitively.
type QueueFilter struct {
	Query    string        `form:"q"`
	Priority *Priority     `form:"priority"`
	Status   *ReviewStatus `form:"status"`
}

func (f QueueFilter) matches(r *Review) bool {
	if f.Priority != nil && r.Priority != *f.Priority {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.ProjectName), q) &&
			!strings.Contains(strings.ToLower(r.OrganizationName), q) {
			return false
		}
	}
	return true
}

// BuildQueue projects active reviews into a prioritized queue: High before
// Medium before Low, longest-waiting first within a priority. The projection
// is pure; it never mutates the underlying reviews.
func BuildQueue(reviews []*Review, filter QueueFilter, now time.Time) []QueueEntry {
	entries := make([]QueueEntry, 0, len(reviews))
	for _, r := range reviews {
		if !filter.matches(r) {
			continue
		}
		entries = append(entries, QueueEntry{
			ReportID:          r.ReportID,
			ProjectID:         r.ProjectID,
			ProjectName:       r.ProjectName,
			OrganizationName:  r.OrganizationName,
			MethodologyCode:   r.MethodologyCode,
			Status:            r.Status,
			Priority:          r.Priority,
			NetCredits:        r.Calculation.NetCredits,
			ConfidencePercent: r.Calculation.ConfidencePercent,
			SubmittedAt:       r.SubmittedAt,
			DaysWaiting:       r.DaysWaiting(now),
			Version:           r.Version,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority.Rank() != entries[j].Priority.Rank() {
			return entries[i].Priority.Rank() > entries[j].Priority.Rank()
		}
		return entries[i].DaysWaiting > entries[j].DaysWaiting
	})

	return entries
}
