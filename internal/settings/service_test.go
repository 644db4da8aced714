package settings

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Get(ctx context.Context, verifierID uuid.UUID) (*Preferences, error) {
	args := m.Called(ctx, verifierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Preferences), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, prefs *Preferences) error {
	args := m.Called(ctx, prefs)
	return args.Error(0)
}

func TestGetFallsBackToDefaults(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())
	verifierID := uuid.New()
	ctx := context.Background()

	mockRepo.On("Get", ctx, verifierID).Return(nil, ErrPreferencesNotFound)

	prefs, err := service.Get(ctx, verifierID)
	assert.NoError(t, err)
	assert.True(t, prefs.NotifyApproved)
	assert.True(t, prefs.NotifyRejected)
	assert.True(t, prefs.NotifyInfoRequested)
	assert.Empty(t, prefs.DefaultQueuePriority)
	mockRepo.AssertExpectations(t)
}

func TestUpdateValidatesQueuePriority(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())

	_, err := service.Update(context.Background(), uuid.New(), &UpdateRequest{
		DefaultQueuePriority: "urgent",
	})
	assert.Error(t, err)
	mockRepo.AssertExpectations(t)
}

func TestUpdateSavesPreferences(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())
	verifierID := uuid.New()
	ctx := context.Background()

	mockRepo.On("Save", ctx, mock.AnythingOfType("*settings.Preferences")).Return(nil)

	prefs, err := service.Update(ctx, verifierID, &UpdateRequest{
		NotifyApproved:       true,
		DefaultQueuePriority: "high",
	})
	assert.NoError(t, err)
	assert.Equal(t, verifierID, prefs.VerifierID)
	assert.Equal(t, "high", prefs.DefaultQueuePriority)
	assert.False(t, prefs.NotifyRejected)
	mockRepo.AssertExpectations(t)
}

func TestWantsEventHonorsFlags(t *testing.T) {
	mockRepo := new(MockRepository)
	service := NewService(mockRepo, zap.NewNop())
	verifierID := uuid.New()
	ctx := context.Background()

	mockRepo.On("Get", ctx, verifierID).Return(&Preferences{
		VerifierID:     verifierID,
		NotifyApproved: true,
		NotifyRejected: false,
	}, nil)

	assert.True(t, service.WantsEvent(ctx, verifierID, "report_approved"))
	assert.False(t, service.WantsEvent(ctx, verifierID, "report_rejected"))
	// Unknown event types are always delivered
	assert.True(t, service.WantsEvent(ctx, verifierID, "report_archived"))
}
