package model

import "time"

// NotificationKind classifies the event behind a notification.
type NotificationKind string

const (
	KindNewAssignment   NotificationKind = "new_assignment"
	KindUnassignment    NotificationKind = "unassignment"
	KindUpdate          NotificationKind = "update"
	KindNewComment      NotificationKind = "new_comment"
	KindCompleted       NotificationKind = "completed"
	KindSentForRevision NotificationKind = "sent_for_revision"
	KindOverdue         NotificationKind = "overdue"
)

// Notification is an alert delivered to a single recipient about
// activity on a task.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID int64 `json:"id" db:"id"`

	// RecipientID is the user who receives the notification.
	RecipientID int64 `json:"recipient_id" db:"recipient_id"`

	// TaskID links this notification to the originating task, if any.
	TaskID *int64 `json:"task_id,omitempty" db:"task_id"`

	// Kind identifies the lifecycle event.
	Kind NotificationKind `json:"kind" db:"kind"`

	// Message is the human-readable notification text.
	Message string `json:"message" db:"message"`

	// Read indicates whether the recipient has seen this notification.
	Read bool `json:"read" db:"is_read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
