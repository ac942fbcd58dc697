package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// CreateComment inserts a comment and sets c.ID and c.CreatedAt.
func (s *SQLiteStore) CreateComment(ctx context.Context, c *model.Comment) error {
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("comment text must not be empty")
	}
	c.CreatedAt = dbTime(time.Now())

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (task_id, created_by, text, created_at)
		VALUES (?, ?, ?, ?)`,
		c.TaskID, c.CreatedBy, c.Text, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating comment on task %d: %w", c.TaskID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading comment id: %w", err)
	}
	c.ID = id
	return nil
}

// GetComments returns a task's comments oldest first, with authors.
func (s *SQLiteStore) GetComments(ctx context.Context, taskID int64) ([]model.Comment, error) {
	var rows []struct {
		model.Comment
		Username  string `db:"username"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.task_id, c.created_by, c.text, c.created_at,
			u.username, u.first_name, u.last_name
		FROM comments c
		INNER JOIN users u ON u.id = c.created_by
		WHERE c.task_id = ?
		ORDER BY c.created_at, c.id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying comments for task %d: %w", taskID, err)
	}

	comments := make([]model.Comment, len(rows))
	for i, r := range rows {
		c := r.Comment
		c.Author = model.User{
			ID:        c.CreatedBy,
			Username:  r.Username,
			FirstName: r.FirstName,
			LastName:  r.LastName,
		}.Ref()
		comments[i] = c
	}
	return comments, nil
}
