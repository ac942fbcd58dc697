package rules

import (
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

// Transition is the accepted outcome of a status change request.
type Transition struct {
	From          model.TaskStatus
	To            model.TaskStatus
	Notifications []model.Notification
}

// ResolveTransition decides whether actor may move task to the requested
// status and which notifications the change produces.
//
//   - completed: only an assignee; the creator is told unless they are
//     also an assignee.
//   - on_revision: managers only; every assignee other than the actor is told.
//   - archived: managers only; nobody is told.
//
// Any other combination is denied.
func ResolveTransition(a Actor, t model.Task, requested string) (Transition, error) {
	to, err := model.ParseTaskStatus(requested)
	if err != nil {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidStatus, requested)
	}

	tr := Transition{From: t.Status, To: to}

	switch to {
	case model.StatusCompleted:
		if !t.IsAssignee(a.ID) {
			return Transition{}, ErrAuthorizationDenied
		}
		if !t.IsAssignee(t.CreatedBy) {
			tr.Notifications = append(tr.Notifications,
				newNotification(t.CreatedBy, t, model.KindCompleted, completedMessage(t.Title)))
		}

	case model.StatusOnRevision:
		if !a.IsManager() {
			return Transition{}, ErrAuthorizationDenied
		}
		for _, id := range t.AssigneeIDs() {
			if id == a.ID {
				continue
			}
			tr.Notifications = append(tr.Notifications,
				newNotification(id, t, model.KindSentForRevision, revisionMessage(t.Title)))
		}

	case model.StatusArchived:
		if !a.IsManager() {
			return Transition{}, ErrAuthorizationDenied
		}

	default:
		return Transition{}, ErrAuthorizationDenied
	}

	return tr, nil
}

// AllowedTransitions lists the statuses actor could currently request for
// task. Used to decide which buttons to render.
func AllowedTransitions(a Actor, t model.Task) []model.TaskStatus {
	var allowed []model.TaskStatus
	for _, st := range model.TaskStatuses {
		if st == t.Status {
			continue
		}
		if _, err := ResolveTransition(a, t, string(st)); err == nil {
			allowed = append(allowed, st)
		}
	}
	return allowed
}
