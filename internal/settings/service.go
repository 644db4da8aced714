package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validQueuePriorities = map[string]bool{
	"":       true,
	"low":    true,
	"medium": true,
	"high":   true,
}

// Service provides business logic for verifier preferences
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new settings service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get returns a verifier's preferences, falling back to defaults when the
// verifier has never saved any
func (s *Service) Get(ctx context.Context, verifierID uuid.UUID) (*Preferences, error) {
	prefs, err := s.repo.Get(ctx, verifierID)
	if errors.Is(err, ErrPreferencesNotFound) {
		return DefaultPreferences(verifierID), nil
	}
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

// UpdateRequest carries the editable preference fields
type UpdateRequest struct {
	NotifyApproved       bool   `json:"notify_approved"`
	NotifyRejected       bool   `json:"notify_rejected"`
	NotifyInfoRequested  bool   `json:"notify_info_requested"`
	DefaultQueuePriority string `json:"default_queue_priority"`
}

// Update saves a verifier's preferences
func (s *Service) Update(ctx context.Context, verifierID uuid.UUID, req *UpdateRequest) (*Preferences, error) {
	if !validQueuePriorities[req.DefaultQueuePriority] {
		return nil, fmt.Errorf("invalid default queue priority: %s", req.DefaultQueuePriority)
	}

	now := time.Now()
	prefs := &Preferences{
		VerifierID:           verifierID,
		NotifyApproved:       req.NotifyApproved,
		NotifyRejected:       req.NotifyRejected,
		NotifyInfoRequested:  req.NotifyInfoRequested,
		DefaultQueuePriority: req.DefaultQueuePriority,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repo.Save(ctx, prefs); err != nil {
		return nil, err
	}

	s.logger.Info("Preferences updated",
		zap.String("verifier_id", verifierID.String()))
	return prefs, nil
}

// WantsEvent reports whether a verifier wants a given decision event pushed.
// Lookup failures default to delivering the event.
func (s *Service) WantsEvent(ctx context.Context, verifierID uuid.UUID, eventType string) bool {
	prefs, err := s.Get(ctx, verifierID)
	if err != nil {
		return true
	}
	switch eventType {
	case "report_approved":
		return prefs.NotifyApproved
	case "report_rejected":
		return prefs.NotifyRejected
	case "report_info_requested":
		return prefs.NotifyInfoRequested
	}
	return true
}

// DefaultQueuePriority returns the verifier's saved queue filter, empty when
// none is set
func (s *Service) DefaultQueuePriority(ctx context.Context, verifierID uuid.UUID) string {
	prefs, err := s.Get(ctx, verifierID)
	if err != nil {
		return ""
	}
	return prefs.DefaultQueuePriority
}
