package model

import (
	"strings"
	"time"
)

// Group names backing the two roles.
const (
	GroupManagers  = "managers"
	GroupEmployees = "employees"
)

// Role is the authorization role of a user, derived from group membership.
type Role int

const (
	RoleNone Role = iota
	RoleEmployee
	RoleManager
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleManager:
		return "manager"
	case RoleEmployee:
		return "employee"
	default:
		return "none"
	}
}

// RoleFromGroups resolves a role from a set of group names. Manager
// membership wins over employee membership.
func RoleFromGroups(groups []string) Role {
	role := RoleNone
	for _, g := range groups {
		switch g {
		case GroupManagers:
			return RoleManager
		case GroupEmployees:
			role = RoleEmployee
		}
	}
	return role
}

// User is an account that can sign in to the board.
type User struct {
	ID                 int64     `json:"id" db:"id"`
	Username           string    `json:"username" db:"username"`
	FirstName          string    `json:"first_name" db:"first_name"`
	LastName           string    `json:"last_name" db:"last_name"`
	Email              string    `json:"email" db:"email"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	MustChangePassword bool      `json:"must_change_password" db:"must_change_password"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	// Groups is populated by store lookups that join user_groups.
	Groups []string `json:"groups,omitempty" db:"-"`
}

// Role returns the role implied by the loaded group membership.
func (u User) Role() Role {
	return RoleFromGroups(u.Groups)
}

// FullName joins first and last name, falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Ref returns the lightweight reference used on tasks and comments.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, FullName: u.FullName()}
}

// UserRef identifies a user without carrying credentials.
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// EmployeeStats is a roster row: the employee plus assignment counters.
type EmployeeStats struct {
	User
	TaskCount    int `json:"task_count" db:"task_count"`
	OverdueCount int `json:"overdue_count" db:"overdue_count"`
}

// Session is a signed-in browser session.
type Session struct {
	Token     string    `json:"token" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
