package verification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChecklistPerMethodology(t *testing.T) {
	base := NewChecklist("UNKNOWN")
	forestry := NewChecklist("VM-FOR")

	assert.Len(t, forestry, len(base)+1)
	for _, item := range forestry {
		assert.Equal(t, ItemPending, item.Status)
	}

	last := forestry[len(forestry)-1]
	assert.Equal(t, "forest-inventory-verified", last.ID)
	assert.True(t, last.Required)
}

func TestIsApprovableRequiresAllRequiredVerified(t *testing.T) {
	checklist := NewChecklist("VM-FOR")
	assert.False(t, checklist.IsApprovable())

	reviewer := uuid.New()
	now := time.Now()
	var err error
	for _, item := range checklist {
		if item.Required {
			checklist, err = checklist.WithItemStatus(item.ID, ItemVerified, "ok", nil, reviewer, now)
			require.NoError(t, err)
		}
	}
	assert.True(t, checklist.IsApprovable(), "optional items must not block")
	assert.Empty(t, checklist.BlockingItems())
}

func TestFlaggedRequiredItemBlocks(t *testing.T) {
	checklist := NewChecklist("VM-FOR")
	reviewer := uuid.New()
	now := time.Now()

	var err error
	for _, item := range checklist {
		if item.Required {
			checklist, err = checklist.WithItemStatus(item.ID, ItemVerified, "", nil, reviewer, now)
			require.NoError(t, err)
		}
	}
	checklist, err = checklist.WithItemStatus("baseline-justified", ItemFlagged, "baseline outdated", nil, reviewer, now)
	require.NoError(t, err)

	assert.False(t, checklist.IsApprovable())
	assert.Contains(t, checklist.BlockingItems(), "baseline-justified (flagged)")
}

func TestFlaggedOptionalItemDoesNotBlock(t *testing.T) {
	checklist := NewChecklist("VM-REN")
	reviewer := uuid.New()
	now := time.Now()

	var err error
	for _, item := range checklist {
		if item.Required {
			checklist, err = checklist.WithItemStatus(item.ID, ItemVerified, "", nil, reviewer, now)
			require.NoError(t, err)
		}
	}
	checklist, err = checklist.WithItemStatus("community-consultation", ItemFlagged, "no records", nil, reviewer, now)
	require.NoError(t, err)

	assert.True(t, checklist.IsApprovable())
}

func TestItemStatusIsReversible(t *testing.T) {
	checklist := NewChecklist("VM-FOR")
	reviewer := uuid.New()
	now := time.Now()

	updated, err := checklist.WithItemStatus("leakage-assessed", ItemFlagged, "needs data", nil, reviewer, now)
	require.NoError(t, err)
	updated, err = updated.WithItemStatus("leakage-assessed", ItemVerified, "data provided", nil, reviewer, now)
	require.NoError(t, err)

	for _, item := range updated {
		if item.ID == "leakage-assessed" {
			assert.Equal(t, ItemVerified, item.Status)
			assert.Equal(t, "data provided", item.Notes)
		}
	}
}

func TestWithItemStatusDoesNotMutateOriginal(t *testing.T) {
	checklist := NewChecklist("VM-FOR")
	reviewer := uuid.New()

	_, err := checklist.WithItemStatus("methodology-applied", ItemVerified, "", nil, reviewer, time.Now())
	require.NoError(t, err)

	for _, item := range checklist {
		assert.Equal(t, ItemPending, item.Status)
	}
}

func TestWithItemStatusErrors(t *testing.T) {
	checklist := NewChecklist("VM-FOR")
	reviewer := uuid.New()

	_, err := checklist.WithItemStatus("no-such-item", ItemVerified, "", nil, reviewer, time.Now())
	assert.Error(t, err)

	_, err = checklist.WithItemStatus("methodology-applied", ItemStatus("bogus"), "", nil, reviewer, time.Now())
	assert.Error(t, err)
}
