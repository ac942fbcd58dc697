package board_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nhle/taskboard/internal/board"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/rules"
	"github.com/nhle/taskboard/internal/store"
	"github.com/nhle/taskboard/tests/testutil"
)

func validationErrors(t *testing.T, err error) board.ValidationErrors {
	t.Helper()
	var ve board.ValidationErrors
	require.True(t, errors.As(err, &ve), "expected validation errors, got %v", err)
	return ve
}

func TestCreateEmployee_LegacyPassword(t *testing.T) {
	s := testutil.NewTestStore(t)
	boss := testutil.CreateManager(t, s, "boss")
	b := board.New(s, board.Options{
		Employees:  model.EmployeeConfig{PasswordScheme: model.PasswordSchemeLegacy, PasswordPrefix: "1234"},
		BcryptCost: bcrypt.MinCost,
	})
	ctx := context.Background()

	u, password, err := b.CreateEmployee(ctx, rules.ActorFor(boss), board.EmployeeForm{
		Username: "alice", FirstName: "Alice", LastName: "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, "1234A", password)
	assert.True(t, u.MustChangePassword)
	assert.Equal(t, model.RoleEmployee, u.Role())

	got, err := b.Authenticate(ctx, "alice", "1234A")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.MustChangePassword)
	assert.Equal(t, model.RoleEmployee, got.Role())
}

func TestCreateEmployee_RandomPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, first, err := f.board.CreateEmployee(ctx, f.actor(f.boss), board.EmployeeForm{Username: "zed"})
	require.NoError(t, err)
	_, second, err := f.board.CreateEmployee(ctx, f.actor(f.boss), board.EmployeeForm{Username: "zoe"})
	require.NoError(t, err)

	assert.Len(t, first, 12)
	assert.NotEqual(t, first, second)

	_, err = f.board.Authenticate(ctx, "zed", first)
	assert.NoError(t, err)
	_, err = f.board.Authenticate(ctx, "zed", second)
	assert.ErrorIs(t, err, board.ErrInvalidCredentials)
	_, err = f.board.Authenticate(ctx, "nobody", first)
	assert.ErrorIs(t, err, board.ErrInvalidCredentials)
}

func TestCreateEmployee_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		form  board.EmployeeForm
		field string
	}{
		{"empty username", board.EmployeeForm{}, "username"},
		{"bad characters", board.EmployeeForm{Username: "al ice"}, "username"},
		{"cyrillic", board.EmployeeForm{Username: "алиса"}, "username"},
		{"taken", board.EmployeeForm{Username: "alice"}, "username"},
		{"bad email", board.EmployeeForm{Username: "newbie", Email: "not-an-address"}, "email"},
		{"username too long", board.EmployeeForm{Username: strings.Repeat("a", 151)}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.board.CreateEmployee(ctx, f.actor(f.boss), tt.form)
			ve := validationErrors(t, err)
			assert.True(t, ve.Has(tt.field), ve.Error())
		})
	}

	_, _, err := f.board.CreateEmployee(ctx, f.actor(f.alice), board.EmployeeForm{Username: "sneaky"})
	assert.ErrorIs(t, err, rules.ErrAuthorizationDenied)
}

func TestUpdateAndDeleteEmployee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.board.UpdateEmployee(ctx, f.actor(f.boss), f.alice.ID, board.EmployeeForm{
		Username: "alice", FirstName: "Alice", Email: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	_, err = f.board.UpdateEmployee(ctx, f.actor(f.boss), f.alice.ID, board.EmployeeForm{Username: "bob"})
	assert.True(t, validationErrors(t, err).Has("username"))

	_, err = f.board.UpdateEmployee(ctx, f.actor(f.boss), f.boss.ID, board.EmployeeForm{Username: "boss"})
	assert.ErrorIs(t, err, store.ErrNotFound, "managers are not edited as employees")

	assert.ErrorIs(t, f.board.DeleteEmployee(ctx, f.actor(f.boss), f.boss.ID), rules.ErrAuthorizationDenied)
	assert.ErrorIs(t, f.board.DeleteEmployee(ctx, f.actor(f.alice), f.bob.ID), rules.ErrAuthorizationDenied)

	task := testutil.CreateTask(t, f.store, "t", testNow.Add(time.Hour), f.boss, f.alice, f.bob)
	require.NoError(t, f.board.DeleteEmployee(ctx, f.actor(f.boss), f.alice.ID))

	_, err = f.board.Employee(ctx, f.actor(f.boss), f.alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	reloaded, err := f.store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.bob.ID}, reloaded.AssigneeIDs())
}

func TestListEmployees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	testutil.CreateTask(t, f.store, "late", testNow.Add(-time.Hour), f.boss, f.alice)

	roster, err := f.board.ListEmployees(ctx, f.actor(f.boss))
	require.NoError(t, err)
	require.Len(t, roster, 5)
	assert.Equal(t, "alice", roster[0].Username)
	assert.Equal(t, 1, roster[0].TaskCount)
	assert.Equal(t, 1, roster[0].OverdueCount)

	_, err = f.board.ListEmployees(ctx, f.actor(f.alice))
	assert.ErrorIs(t, err, rules.ErrAuthorizationDenied)

	available, err := f.board.AvailableEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, available, 5)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, initial, err := f.board.CreateEmployee(ctx, f.actor(f.boss), board.EmployeeForm{Username: "frank"})
	require.NoError(t, err)

	err = f.board.ChangePassword(ctx, u.ID, board.PasswordForm{Current: "wrong", New: "short", Confirm: "other"})
	ve := validationErrors(t, err)
	assert.True(t, ve.Has("current_password"))
	assert.True(t, ve.Has("new_password"))
	assert.True(t, ve.Has("confirm_password"))

	require.NoError(t, f.board.ChangePassword(ctx, u.ID, board.PasswordForm{Current: initial, New: "correct horse", Confirm: "correct horse"}))

	got, err := f.board.Authenticate(ctx, "frank", "correct horse")
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)
}

func TestCreateManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.board.CreateManager(ctx, board.EmployeeForm{Username: "boss"}, "short")
	ve := validationErrors(t, err)
	assert.True(t, ve.Has("username"))
	assert.True(t, ve.Has("new_password"))

	m, err := f.board.CreateManager(ctx, board.EmployeeForm{Username: "chief"}, "long enough")
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, m.Role())
	assert.False(t, m.MustChangePassword)
}

func TestSessions(t *testing.T) {
	s := testutil.NewTestStore(t)
	alice := testutil.CreateEmployee(t, s, "alice")
	ctx := context.Background()

	now := testNow
	b := board.New(s, board.Options{
		Now:        func() time.Time { return now },
		SessionTTL: time.Hour,
		BcryptCost: bcrypt.MinCost,
	})

	sess, err := b.StartSession(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	u, err := b.SessionUser(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	now = now.Add(2 * time.Hour)
	_, err = b.SessionUser(ctx, sess.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetSession(ctx, sess.Token)
	assert.ErrorIs(t, err, store.ErrNotFound, "expired session is removed on use")

	other, err := b.StartSession(ctx, alice.ID)
	require.NoError(t, err)
	require.NoError(t, b.EndSession(ctx, other.Token))
	_, err = b.SessionUser(ctx, other.Token)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNotificationPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, f.store.CreateNotification(ctx, &model.Notification{
			RecipientID: f.alice.ID,
			Kind:        model.KindUpdate,
			Message:     "n",
			CreatedAt:   testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	summary, err := f.board.NotificationSummary(ctx, f.actor(f.alice))
	require.NoError(t, err)
	assert.Equal(t, 12, summary.UnreadCount)

	page, err := f.board.NotificationPage(ctx, f.actor(f.alice), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page, "past the end clamps to the last page")
	assert.Equal(t, 2, page.Pages)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasPrev())
	assert.False(t, page.HasNext())
	for _, n := range page.Items {
		assert.True(t, n.Read)
	}

	page, err = f.board.NotificationPage(ctx, f.actor(f.alice), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 10)

	summary, err = f.board.NotificationSummary(ctx, f.actor(f.alice))
	require.NoError(t, err)
	assert.Zero(t, summary.UnreadCount, "viewing the list marks everything read")

	cleared, err := f.board.ClearNotifications(ctx, f.actor(f.alice))
	require.NoError(t, err)
	assert.EqualValues(t, 12, cleared)

	page, err = f.board.NotificationPage(ctx, f.actor(f.alice), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pages)
	assert.Empty(t, page.Items)
}
