package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

const notificationColumns = `id, recipient_id, task_id, kind, message, is_read, created_at`

// CreateNotification inserts a new notification record and sets n.ID and
// n.CreatedAt.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := s.insertNotification(ctx, "INSERT", n)
	return err
}

// CreateNotificationOnce inserts n unless a unique index already holds an
// equivalent row (overdue notifications are unique per recipient and
// task). It reports whether a row was written.
func (s *SQLiteStore) CreateNotificationOnce(ctx context.Context, n *model.Notification) (bool, error) {
	return s.insertNotification(ctx, "INSERT OR IGNORE", n)
}

func (s *SQLiteStore) insertNotification(ctx context.Context, verb string, n *model.Notification) (bool, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = dbTime(n.CreatedAt)

	res, err := s.db.ExecContext(ctx, verb+` INTO notifications
		(recipient_id, task_id, kind, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.RecipientID, n.TaskID, string(n.Kind), n.Message,
		boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("creating notification: %w", err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading notification id: %w", err)
	}
	n.ID = id
	return true, nil
}

// GetNotifications returns a recipient's notifications, newest first.
func (s *SQLiteStore) GetNotifications(ctx context.Context, filter NotificationFilter) ([]model.Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE recipient_id = ?"
	args := []interface{}{filter.RecipientID}
	if filter.UnreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	var ns []model.Notification
	if err := s.db.SelectContext(ctx, &ns, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return ns, nil
}

// CountNotifications counts a recipient's notifications.
func (s *SQLiteStore) CountNotifications(ctx context.Context, recipientID int64, unreadOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM notifications WHERE recipient_id = ?"
	if unreadOnly {
		query += " AND is_read = 0"
	}
	var n int
	if err := s.db.GetContext(ctx, &n, query, recipientID); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationsRead marks every unread notification of the recipient
// as read and returns how many changed.
func (s *SQLiteStore) MarkNotificationsRead(ctx context.Context, recipientID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0", recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteNotifications removes all of a recipient's notifications.
func (s *SQLiteStore) DeleteNotifications(ctx context.Context, recipientID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE recipient_id = ?", recipientID)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
