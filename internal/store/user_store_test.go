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

func TestUsers_RolesFromGroups(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	boss := testutil.CreateManager(t, s, "boss")
	alice := testutil.CreateEmployee(t, s, "alice")
	nobody := testutil.CreateUser(t, s, "nobody")

	got, err := s.GetUserByID(ctx, boss.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, got.Role())

	got, err = s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, model.RoleEmployee, got.Role())

	got, err = s.GetUserByID(ctx, nobody.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleNone, got.Role())

	_, err = s.GetUserByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.AddUserToGroup(ctx, alice.ID, "admins"), store.ErrNotFound)
	assert.NoError(t, s.AddUserToGroup(ctx, alice.ID, model.GroupEmployees), "re-adding is a no-op")
}

func TestUsers_UniqueUsername(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	alice := testutil.CreateEmployee(t, s, "alice")
	bob := testutil.CreateEmployee(t, s, "bob")

	err := s.CreateUser(ctx, &model.User{Username: "alice"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	taken, err := s.UsernameTaken(ctx, "alice", bob.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.UsernameTaken(ctx, "alice", alice.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	bob.Username = "alice"
	assert.ErrorIs(t, s.UpdateUser(ctx, bob), store.ErrDuplicate)
}

func TestCreateUser_UnknownGroupWritesNothing(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	u := model.User{Username: "carol"}
	err := s.CreateUser(ctx, &u, model.GroupEmployees, "admins")
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, u.ID)

	_, err = s.GetUserByUsername(ctx, "carol")
	assert.ErrorIs(t, err, store.ErrNotFound, "the user row is rolled back")

	taken, err := s.UsernameTaken(ctx, "carol", 0)
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, s.CreateUser(ctx, &u, model.GroupEmployees))
	assert.NotZero(t, u.ID)
	assert.Equal(t, []string{model.GroupEmployees}, u.Groups)
}

func TestGetEmployeeStats(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	boss := testutil.CreateManager(t, s, "boss")
	bob := testutil.CreateEmployee(t, s, "bob")
	alice := testutil.CreateEmployee(t, s, "alice")

	now := time.Now()
	testutil.CreateTask(t, s, "late", now.Add(-time.Hour), boss, alice)
	testutil.CreateTask(t, s, "fine", now.Add(time.Hour), boss, alice, bob)
	done := testutil.CreateTask(t, s, "late but done", now.Add(-time.Hour), boss, alice)
	require.NoError(t, s.UpdateTaskStatus(ctx, done.ID, model.StatusCompleted))

	stats, err := s.GetEmployeeStats(ctx, now)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "alice", stats[0].Username)
	assert.Equal(t, 3, stats[0].TaskCount)
	assert.Equal(t, 1, stats[0].OverdueCount)

	assert.Equal(t, "bob", stats[1].Username)
	assert.Equal(t, 1, stats[1].TaskCount)
	assert.Equal(t, 0, stats[1].OverdueCount)
}

func TestSessions(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	alice := testutil.CreateEmployee(t, s, "alice")
	now := time.Now()

	require.NoError(t, s.CreateSession(ctx, model.Session{Token: "live", UserID: alice.ID, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, model.Session{Token: "stale", UserID: alice.ID, ExpiresAt: now.Add(-time.Hour)}))

	sess, err := s.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sess.UserID)
	assert.False(t, sess.Expired(now))

	purged, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	_, err = s.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteUser(ctx, alice.ID))
	_, err = s.GetSession(ctx, "live")
	assert.ErrorIs(t, err, store.ErrNotFound, "sessions cascade with the user")
}
