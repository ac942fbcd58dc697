package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// ErrNotFound is wrapped by lookups and mutations that match no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is wrapped when a unique constraint rejects a write.
var ErrDuplicate = errors.New("already exists")

// Deadline filter values for TaskFilter.Deadline.
const (
	DeadlineOverdue = "overdue"
	DeadlineToday   = "today"
	DeadlineFuture  = "future"
)

// TaskFilter controls filtering and sorting for task queries.
type TaskFilter struct {
	AssigneeID    *int64
	Status        *model.TaskStatus
	ExcludeStatus *model.TaskStatus
	Deadline      string    // "overdue", "today", "future", or "" (all)
	Now           time.Time // reference time for Deadline; zero means time.Now()
	Location      *time.Location
	SortBy        string // "deadline" or "" (creation order)
	SortDesc      bool
}

// NotificationFilter controls paging for notification queries.
type NotificationFilter struct {
	RecipientID int64
	UnreadOnly  bool
	Limit       int
	Offset      int
}

// Store defines the persistence interface for users, sessions, tasks,
// comments and notifications.
type Store interface {
	// === Users & groups ===

	CreateUser(ctx context.Context, u *model.User, groups ...string) error
	UpdateUser(ctx context.Context, u model.User) error
	DeleteUser(ctx context.Context, id int64) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	SetPassword(ctx context.Context, userID int64, hash string, mustChange bool) error
	AddUserToGroup(ctx context.Context, userID int64, group string) error
	GetUsersInGroup(ctx context.Context, group string) ([]model.User, error)
	GetEmployeeStats(ctx context.Context, now time.Time) ([]model.EmployeeStats, error)

	// === Sessions ===

	CreateSession(ctx context.Context, sess model.Session) error
	GetSession(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	// === Tasks ===

	CreateTask(ctx context.Context, t *model.Task, assigneeIDs []int64) error
	UpdateTask(ctx context.Context, t model.Task, assigneeIDs []int64) error
	UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error
	DeleteTask(ctx context.Context, id int64) error
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)

	// === Comments ===

	CreateComment(ctx context.Context, c *model.Comment) error
	GetComments(ctx context.Context, taskID int64) ([]model.Comment, error)

	// === Notifications ===

	CreateNotification(ctx context.Context, n *model.Notification) error
	CreateNotificationOnce(ctx context.Context, n *model.Notification) (bool, error)
	GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error)
	CountNotifications(ctx context.Context, recipientID int64, unreadOnly bool) (int, error)
	MarkNotificationsRead(ctx context.Context, recipientID int64) (int64, error)
	DeleteNotifications(ctx context.Context, recipientID int64) (int64, error)
}
