package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskboard/internal/model"
)

const taskSelect = `
	SELECT tasks.id, tasks.title, tasks.description, tasks.deadline, tasks.status,
		tasks.created_by, tasks.created_at, tasks.updated_at,
		u.username AS creator_username,
		u.first_name AS creator_first_name,
		u.last_name AS creator_last_name
	FROM tasks
	INNER JOIN users u ON u.id = tasks.created_by`

// taskRow is a task joined with its creator's name columns.
type taskRow struct {
	model.Task
	CreatorUsername  string `db:"creator_username"`
	CreatorFirstName string `db:"creator_first_name"`
	CreatorLastName  string `db:"creator_last_name"`
}

func (r taskRow) toTask() model.Task {
	t := r.Task
	t.Creator = model.User{
		ID:        t.CreatedBy,
		Username:  r.CreatorUsername,
		FirstName: r.CreatorFirstName,
		LastName:  r.CreatorLastName,
	}.Ref()
	return t
}

// CreateTask inserts a task with its assignees in one transaction and sets
// t.ID, t.CreatedAt and t.UpdatedAt. Status defaults to in_progress.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task, assigneeIDs []int64) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}
	if t.Status == "" {
		t.Status = model.StatusInProgress
	}
	now := dbTime(time.Now())
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Deadline = dbTime(t.Deadline)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (title, description, deadline, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.Deadline, string(t.Status), t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading task id: %w", err)
	}

	if err := setAssignees(ctx, tx, id, assigneeIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing task: %w", err)
	}

	t.ID = id
	return nil
}

// UpdateTask saves title, description, deadline and status, replaces the
// assignee set and refreshes updated_at. created_by is never written.
func (s *SQLiteStore) UpdateTask(ctx context.Context, t model.Task, assigneeIDs []int64) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title must not be empty")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, deadline = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, dbTime(t.Deadline), string(t.Status), dbTime(time.Now()), t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", t.ID, err)
	}
	if err := requireAffected(res, fmt.Sprintf("task %d", t.ID)); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_assignees WHERE task_id = ?", t.ID); err != nil {
		return fmt.Errorf("clearing assignees of task %d: %w", t.ID, err)
	}
	if err := setAssignees(ctx, tx, t.ID, assigneeIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateTaskStatus changes only the status and refreshes updated_at.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		string(status), dbTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating status of task %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("task %d", id))
}

// DeleteTask removes a task. Cascades to assignees, comments and
// notifications.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("task %d", id))
}

// GetTaskByID retrieves a task with its creator and assignees.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	var row taskRow
	if err := s.db.GetContext(ctx, &row, taskSelect+" WHERE tasks.id = ?", id); err != nil {
		return nil, notFound(err, fmt.Sprintf("task %d", id))
	}

	tasks := []model.Task{row.toTask()}
	if err := s.loadAssignees(ctx, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// GetTasks retrieves tasks matching the filter, with creators and
// assignees populated.
func (s *SQLiteStore) GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query, args := buildTaskQuery(filter)

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.toTask()
	}
	if err := s.loadAssignees(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// buildTaskQuery constructs the SQL query and args for a TaskFilter.
func buildTaskQuery(filter TaskFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.AssigneeID != nil {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM task_assignees ta WHERE ta.task_id = tasks.id AND ta.user_id = ?)")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "tasks.status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ExcludeStatus != nil {
		conditions = append(conditions, "tasks.status != ?")
		args = append(args, string(*filter.ExcludeStatus))
	}
	if filter.Deadline != "" {
		now := filter.Now
		if now.IsZero() {
			now = time.Now()
		}
		switch filter.Deadline {
		case DeadlineOverdue:
			conditions = append(conditions, "tasks.deadline < ?")
			args = append(args, dbTime(now))
		case DeadlineFuture:
			conditions = append(conditions, "tasks.deadline > ?")
			args = append(args, dbTime(now))
		case DeadlineToday:
			start, end := dayBounds(now, filter.Location)
			conditions = append(conditions, "tasks.deadline >= ? AND tasks.deadline < ?")
			args = append(args, dbTime(start), dbTime(end))
		}
	}

	query := taskSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	order := "tasks.id ASC"
	if filter.SortBy == "deadline" {
		direction := "ASC"
		if filter.SortDesc {
			direction = "DESC"
		}
		order = fmt.Sprintf("tasks.deadline %s, tasks.id ASC", direction)
	}
	query += " ORDER BY " + order

	return query, args
}

// dayBounds returns the start of now's calendar day in loc and the start of
// the next one.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// setAssignees inserts assignment rows inside tx.
func setAssignees(ctx context.Context, tx *sqlx.Tx, taskID int64, userIDs []int64) error {
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_assignees (task_id, user_id) VALUES (?, ?)",
			taskID, uid); err != nil {
			return fmt.Errorf("assigning user %d to task %d: %w", uid, taskID, err)
		}
	}
	return nil
}

// loadAssignees populates Assignees for every task with one query.
func (s *SQLiteStore) loadAssignees(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	index := make(map[int64]int, len(tasks))
	args := make([]interface{}, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		args[i] = t.ID
		tasks[i].Assignees = []model.UserRef{}
	}

	var rows []struct {
		TaskID    int64  `db:"task_id"`
		ID        int64  `db:"id"`
		Username  string `db:"username"`
		FirstName string `db:"first_name"`
		LastName  string `db:"last_name"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ta.task_id, u.id, u.username, u.first_name, u.last_name
		FROM task_assignees ta
		INNER JOIN users u ON u.id = ta.user_id
		WHERE ta.task_id IN (`+placeholders(len(args))+`)
		ORDER BY u.username`, args...)
	if err != nil {
		return fmt.Errorf("loading task assignees: %w", err)
	}

	for _, r := range rows {
		i := index[r.TaskID]
		ref := model.User{ID: r.ID, Username: r.Username, FirstName: r.FirstName, LastName: r.LastName}.Ref()
		tasks[i].Assignees = append(tasks[i].Assignees, ref)
	}
	return nil
}
