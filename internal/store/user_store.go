package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/taskboard/internal/model"
)

const userColumns = `users.id, users.username, users.first_name, users.last_name,
	users.email, users.password_hash, users.must_change_password, users.created_at`

// CreateUser inserts a new user together with its group memberships and
// sets u.ID, u.CreatedAt and u.Groups. Nothing is written when any group is
// unknown.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User, groups ...string) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username must not be empty")
	}
	createdAt := dbTime(time.Now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (
			username, first_name, last_name, email,
			password_hash, must_change_password, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.FirstName, u.LastName, u.Email,
		u.PasswordHash, boolToInt(u.MustChangePassword), createdAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	for _, g := range groups {
		if err := addToGroup(ctx, tx, id, g); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user %q: %w", u.Username, err)
	}
	u.ID = id
	u.CreatedAt = createdAt
	u.Groups = append([]string(nil), groups...)
	return nil
}

// UpdateUser updates profile fields. Password and groups are managed by
// SetPassword and AddUserToGroup.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u model.User) error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = ?, first_name = ?, last_name = ?, email = ?
		WHERE id = ?`,
		u.Username, u.FirstName, u.LastName, u.Email, u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", u.Username, ErrDuplicate)
		}
		return fmt.Errorf("updating user %d: %w", u.ID, err)
	}
	return requireAffected(res, fmt.Sprintf("user %d", u.ID))
}

// DeleteUser removes a user. Cascades to memberships, sessions,
// assignments, comments, notifications and tasks they created.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	return requireAffected(res, fmt.Sprintf("user %d", id))
}

// GetUserByID retrieves a user with their group names.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %d", id))
	}
	if err := s.loadGroups(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by exact username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user %q", username))
	}
	if err := s.loadGroups(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UsernameTaken reports whether another user (not excludeID) owns username.
func (s *SQLiteStore) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM users WHERE username = ? AND id != ?", username, excludeID)
	if err != nil {
		return false, fmt.Errorf("checking username %q: %w", username, err)
	}
	return n > 0, nil
}

// SetPassword stores a new password hash and the forced-change flag.
func (s *SQLiteStore) SetPassword(ctx context.Context, userID int64, hash string, mustChange bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, must_change_password = ? WHERE id = ?",
		hash, boolToInt(mustChange), userID)
	if err != nil {
		return fmt.Errorf("setting password for user %d: %w", userID, err)
	}
	return requireAffected(res, fmt.Sprintf("user %d", userID))
}

// AddUserToGroup adds a membership; adding an existing one is a no-op.
func (s *SQLiteStore) AddUserToGroup(ctx context.Context, userID int64, group string) error {
	return addToGroup(ctx, s.db, userID, group)
}

func addToGroup(ctx context.Context, q sqlx.ExtContext, userID int64, group string) error {
	res, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_groups (user_id, group_id)
		SELECT ?, id FROM auth_groups WHERE name = ?`,
		userID, group)
	if err != nil {
		return fmt.Errorf("adding user %d to group %s: %w", userID, group, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		// Either already a member or the group does not exist.
		var n int
		if err := sqlx.GetContext(ctx, q, &n,
			"SELECT COUNT(*) FROM auth_groups WHERE name = ?", group); err != nil {
			return fmt.Errorf("checking group %s: %w", group, err)
		}
		if n == 0 {
			return fmt.Errorf("group %s: %w", group, ErrNotFound)
		}
	}
	return nil
}

// GetUsersInGroup lists members of a group ordered by username.
func (s *SQLiteStore) GetUsersInGroup(ctx context.Context, group string) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users
		INNER JOIN user_groups ug ON ug.user_id = users.id
		INNER JOIN auth_groups g ON g.id = ug.group_id
		WHERE g.name = ?
		ORDER BY users.username`, group)
	if err != nil {
		return nil, fmt.Errorf("querying users in group %s: %w", group, err)
	}
	for i := range users {
		if err := s.loadGroups(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// GetEmployeeStats lists employees ordered by username with the number of
// tasks assigned to them and how many of those are overdue and still open
// (in_progress or on_revision) at now.
func (s *SQLiteStore) GetEmployeeStats(ctx context.Context, now time.Time) ([]model.EmployeeStats, error) {
	var stats []model.EmployeeStats
	err := s.db.SelectContext(ctx, &stats, `
		SELECT `+userColumns+`,
			COUNT(t.id) AS task_count,
			COALESCE(SUM(CASE
				WHEN t.deadline < ? AND t.status IN ('in_progress', 'on_revision') THEN 1
				ELSE 0 END), 0) AS overdue_count
		FROM users
		INNER JOIN user_groups ug ON ug.user_id = users.id
		INNER JOIN auth_groups g ON g.id = ug.group_id AND g.name = ?
		LEFT JOIN task_assignees ta ON ta.user_id = users.id
		LEFT JOIN tasks t ON t.id = ta.task_id
		GROUP BY users.id
		ORDER BY users.username`,
		dbTime(now), model.GroupEmployees)
	if err != nil {
		return nil, fmt.Errorf("querying employee stats: %w", err)
	}
	for i := range stats {
		if err := s.loadGroups(ctx, &stats[i].User); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// loadGroups fills u.Groups.
func (s *SQLiteStore) loadGroups(ctx context.Context, u *model.User) error {
	var groups []string
	err := s.db.SelectContext(ctx, &groups, `
		SELECT g.name FROM auth_groups g
		INNER JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = ?
		ORDER BY g.name`, u.ID)
	if err != nil {
		return fmt.Errorf("loading groups for user %d: %w", u.ID, err)
	}
	u.Groups = groups
	return nil
}
