// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/store"
)

// NewTestStore opens a migrated in-memory database that is closed when the
// test ends. The concrete type is returned so tests can reach store-only
// helpers such as SchemaVersion.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening in-memory store")
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return s
}

// CreateUser inserts a user that belongs to the given groups.
func CreateUser(t *testing.T, s store.Store, username string, groups ...string) model.User {
	t.Helper()

	u := model.User{Username: username, FirstName: username}
	require.NoError(t, s.CreateUser(context.Background(), &u, groups...), "creating user %s", username)
	return u
}

// CreateManager inserts a user in the managers group.
func CreateManager(t *testing.T, s store.Store, username string) model.User {
	t.Helper()
	return CreateUser(t, s, username, model.GroupManagers)
}

// CreateEmployee inserts a user in the employees group.
func CreateEmployee(t *testing.T, s store.Store, username string) model.User {
	t.Helper()
	return CreateUser(t, s, username, model.GroupEmployees)
}

// CreateTask inserts a task created by creator and assigned to assignees,
// and returns it as loaded back from the store.
func CreateTask(t *testing.T, s store.Store, title string, deadline time.Time, creator model.User, assignees ...model.User) model.Task {
	t.Helper()
	ctx := context.Background()

	ids := make([]int64, len(assignees))
	for i, a := range assignees {
		ids[i] = a.ID
	}

	task := model.Task{
		Title:       title,
		Description: title + " description",
		Deadline:    deadline,
		CreatedBy:   creator.ID,
	}
	require.NoError(t, s.CreateTask(ctx, &task, ids), "creating task %s", title)

	loaded, err := s.GetTaskByID(ctx, task.ID)
	require.NoError(t, err, "loading task %s", title)
	return *loaded
}
