package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

func TestCreateNotificationOnce_Overdue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	boss := testutil.CreateManager(t, s, "boss")
	alice := testutil.CreateEmployee(t, s, "alice")
	task := testutil.CreateTask(t, s, "late", time.Now().Add(-time.Hour), boss, alice)

	overdue := func() *model.Notification {
		return &model.Notification{
			RecipientID: alice.ID,
			TaskID:      &task.ID,
			Kind:        model.KindOverdue,
			Message:     "Задача 'late' просрочена",
		}
	}

	created, err := s.CreateNotificationOnce(ctx, overdue())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateNotificationOnce(ctx, overdue())
	require.NoError(t, err)
	assert.False(t, created)

	n, err := s.CountNotifications(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateNotification_NonOverdueRepeats(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	boss := testutil.CreateManager(t, s, "boss")
	alice := testutil.CreateEmployee(t, s, "alice")
	task := testutil.CreateTask(t, s, "chatty", time.Now(), boss, alice)

	for i := 0; i < 2; i++ {
		require.NoError(t, s.CreateNotification(ctx, &model.Notification{
			RecipientID: alice.ID, TaskID: &task.ID, Kind: model.KindUpdate, Message: "updated",
		}))
	}

	n, err := s.CountNotifications(ctx, alice.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNotifications_PagingReadAndClear(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	alice := testutil.CreateEmployee(t, s, "alice")
	bob := testutil.CreateEmployee(t, s, "bob")

	base := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		require.NoError(t, s.CreateNotification(ctx, &model.Notification{
			RecipientID: alice.ID,
			Kind:        model.KindUpdate,
			Message:     "n",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateNotification(ctx, &model.Notification{
		RecipientID: bob.ID, Kind: model.KindUpdate, Message: "bob's",
	}))

	page, err := s.GetNotifications(ctx, store.NotificationFilter{RecipientID: alice.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 10)
	assert.True(t, page[0].CreatedAt.After(page[9].CreatedAt), "newest first")
	assert.Nil(t, page[0].TaskID)

	rest, err := s.GetNotifications(ctx, store.NotificationFilter{RecipientID: alice.ID, Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	unread, err := s.CountNotifications(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 12, unread)

	marked, err := s.MarkNotificationsRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 12, marked)

	unread, err = s.CountNotifications(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Zero(t, unread)

	deleted, err := s.DeleteNotifications(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 12, deleted)

	bobs, err := s.CountNotifications(ctx, bob.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, bobs, "other recipients untouched")
}
