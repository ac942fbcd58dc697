package rules

import (
	"fmt"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

func createdMessage(title string) string {
	return fmt.Sprintf("Новая задача '%s' назначена Вам", title)
}

func assignedMessage(title string) string {
	return fmt.Sprintf("Задача '%s' была назначена Вам", title)
}

func unassignedMessage(title string) string {
	return fmt.Sprintf("Задача '%s' была снята с Вас", title)
}

func updatedMessage(title string) string {
	return fmt.Sprintf("Задача '%s' была обновлена", title)
}

func commentMessage(title, author string) string {
	return fmt.Sprintf("Новый комментарий к задаче '%s' от %s", title, author)
}

func completedMessage(title string) string {
	return fmt.Sprintf("Задача '%s' отмечена как выполненная", title)
}

func revisionMessage(title string) string {
	return fmt.Sprintf("Задача '%s' отправлена на доработку", title)
}

// OverdueMessage is the fixed text of an overdue notification.
func OverdueMessage(title string) string {
	return fmt.Sprintf("Задача '%s' просрочена", title)
}

func newNotification(recipient int64, t model.Task, kind model.NotificationKind, msg string) model.Notification {
	taskID := t.ID
	return model.Notification{
		RecipientID: recipient,
		TaskID:      &taskID,
		Kind:        kind,
		Message:     msg,
	}
}

// CreationNotifications tells every assignee other than the creator about
// a new task.
func CreationNotifications(actorID int64, t model.Task) []model.Notification {
	var out []model.Notification
	for _, id := range t.AssigneeIDs() {
		if id == actorID {
			continue
		}
		out = append(out, newNotification(id, t, model.KindNewAssignment, createdMessage(t.Title)))
	}
	return out
}

// CommentNotifications tells the assignees and the creator about a new
// comment, except the commenter.
func CommentNotifications(commenter model.UserRef, t model.Task) []model.Notification {
	recipients := append([]int64{t.CreatedBy}, t.AssigneeIDs()...)
	seen := make(map[int64]bool, len(recipients))

	var out []model.Notification
	for _, id := range recipients {
		if id == commenter.ID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, newNotification(id, t, model.KindNewComment, commentMessage(t.Title, commenter.Username)))
	}
	return out
}

// OverdueNotifications returns one overdue notification per assignee when
// the task is overdue at now. Persisting them must be idempotent per
// (recipient, task).
func OverdueNotifications(t model.Task, now time.Time) []model.Notification {
	if !t.IsOverdue(now) {
		return nil
	}
	var out []model.Notification
	for _, id := range t.AssigneeIDs() {
		out = append(out, newNotification(id, t, model.KindOverdue, OverdueMessage(t.Title)))
	}
	return out
}
