// Package rules holds the authorization and notification rules for tasks.
// Every function is pure: callers load state, ask the rules what is allowed
// and which notifications follow, then persist the outcome.
package rules

import (
	"errors"

	"github.com/nhle/taskboard/internal/model"
)

var (
	// ErrAuthorizationDenied is returned when the actor's role or
	// assignment does not permit the requested action.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrInvalidStatus is returned for status values outside the task
	// lifecycle.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Actor is the user performing an action, with the role resolved once per
// request.
type Actor struct {
	ID   int64
	Role model.Role
}

// ActorFor builds an Actor from a loaded user.
func ActorFor(u model.User) Actor {
	return Actor{ID: u.ID, Role: u.Role()}
}

// IsManager reports whether the actor holds the manager role.
func (a Actor) IsManager() bool {
	return a.Role == model.RoleManager
}

// RequireManager guards manager-only actions: creating, editing and
// deleting tasks, the archive listing and the employee roster.
func RequireManager(a Actor) error {
	if !a.IsManager() {
		return ErrAuthorizationDenied
	}
	return nil
}

// CanViewTask allows assignees and managers.
func CanViewTask(a Actor, t model.Task) error {
	if a.IsManager() || t.IsAssignee(a.ID) {
		return nil
	}
	return ErrAuthorizationDenied
}
