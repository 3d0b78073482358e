package items

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rewear/rewear-backend/pkg/db/dbtest"
	"github.com/rewear/rewear-backend/pkg/db/models"
	"github.com/rewear/rewear-backend/pkg/enums"
	"github.com/rewear/rewear-backend/pkg/pagination"
)

var baseTime = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func seedItem(t *testing.T, repo *Repository, owner uuid.UUID, status enums.ModerationStatus, age time.Duration) *models.Item {
	t.Helper()
	item := &models.Item{
		OwnerID:     owner,
		Title:       "Denim jacket",
		Description: "Barely worn",
		Category:    "outerwear",
		Type:        "jacket",
		Size:        "M",
		Condition:   "good",
		Status:      status,
		Available:   true,
		CreatedAt:   baseTime.Add(-age),
	}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func TestListSwappablePaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()
	owner := uuid.New()

	newest := seedItem(t, repo, owner, enums.ModerationStatusApproved, time.Minute)
	middle := seedItem(t, repo, owner, enums.ModerationStatusApproved, 2*time.Minute)
	oldest := seedItem(t, repo, owner, enums.ModerationStatusApproved, 3*time.Minute)
	seedItem(t, repo, owner, enums.ModerationStatusPending, 0)
	gone := seedItem(t, repo, owner, enums.ModerationStatusApproved, 0)
	require.NoError(t, repo.MarkUnavailable(ctx, gone.ID))
	assert.ErrorIs(t, repo.MarkUnavailable(ctx, gone.ID), ErrItemUnavailable)

	first, err := repo.ListSwappable(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, newest.ID, first.Items[0].ID)
	assert.Equal(t, middle.ID, first.Items[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := repo.ListSwappable(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, oldest.ID, second.Items[0].ID)
	assert.Empty(t, second.NextCursor)

	_, err = repo.ListSwappable(ctx, pagination.Params{Cursor: "%%%"})
	assert.Error(t, err)
}

func TestRepositoryStatusAndOwnerQueries(t *testing.T) {
	repo := NewRepository(dbtest.Open(t).DB())
	ctx := context.Background()
	owner := uuid.New()

	pending := seedItem(t, repo, owner, enums.ModerationStatusPending, time.Minute)
	seedItem(t, repo, uuid.New(), enums.ModerationStatusPending, 0)

	mine, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, pending.ID, mine[0].ID)

	queue, err := repo.ListByStatus(ctx, enums.ModerationStatusPending)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	require.NoError(t, repo.UpdateStatus(ctx, pending.ID, enums.ModerationStatusApproved))
	reloaded, err := repo.FindByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ModerationStatusApproved, reloaded.Status)
	assert.True(t, reloaded.Available)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), enums.ModerationStatusRejected), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.MarkUnavailable(ctx, uuid.New()), ErrItemUnavailable)
}

func TestRepositoryDeleteRemovesSwapRequests(t *testing.T) {
	client := dbtest.Open(t)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	item := seedItem(t, repo, uuid.New(), enums.ModerationStatusApproved, 0)
	swap := &models.SwapRequest{RequesterID: uuid.New(), ItemID: item.ID, SwapType: enums.SwapTypeDirect}
	require.NoError(t, client.DB().Create(swap).Error)

	require.NoError(t, repo.Delete(ctx, item.ID))
	_, err := repo.FindByID(ctx, item.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, client.DB().Model(&models.SwapRequest{}).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, item.ID), gorm.ErrRecordNotFound)
}
