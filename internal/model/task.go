package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task status constants.
const (
	StatusInProgress TaskStatus = "in_progress"
	StatusOnRevision TaskStatus = "on_revision"
	StatusCompleted  TaskStatus = "completed"
	StatusArchived   TaskStatus = "archived"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{
	StatusInProgress,
	StatusOnRevision,
	StatusCompleted,
	StatusArchived,
}

var statusLabels = map[TaskStatus]string{
	StatusInProgress: "В работе",
	StatusOnRevision: "На доработке",
	StatusCompleted:  "Выполнена",
	StatusArchived:   "В архиве",
}

// ParseTaskStatus validates a raw status value.
func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

// Label returns the human-readable status name.
func (s TaskStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// MaxTitleLength is the longest accepted task title.
const MaxTitleLength = 200

// Task is a unit of work created by a manager and assigned to employees.
type Task struct {
	ID          int64      `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Deadline    time.Time  `json:"deadline" db:"deadline"`
	Status      TaskStatus `json:"status" db:"status"`

	// CreatedBy is fixed when the task is created.
	CreatedBy int64     `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Creator and Assignees are populated by store lookups.
	Creator   UserRef   `json:"creator" db:"-"`
	Assignees []UserRef `json:"assignees" db:"-"`
}

// AssigneeIDs returns the ids of the assigned users.
func (t Task) AssigneeIDs() []int64 {
	ids := make([]int64, len(t.Assignees))
	for i, a := range t.Assignees {
		ids[i] = a.ID
	}
	return ids
}

// IsAssignee reports whether userID is in the assignee set.
func (t Task) IsAssignee(userID int64) bool {
	for _, a := range t.Assignees {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the deadline has strictly passed and the task
// is not archived.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Deadline.Before(now) && t.Status != StatusArchived
}

// Comment is an immutable remark left on a task.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	TaskID    int64     `json:"task_id" db:"task_id"`
	CreatedBy int64     `json:"created_by" db:"created_by"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Author is populated by store lookups.
	Author UserRef `json:"author" db:"-"`
}
