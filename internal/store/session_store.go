package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/taskboard/internal/model"
)

// CreateSession stores a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess model.Session) error {
	if sess.Token == "" {
		return fmt.Errorf("session token must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, dbTime(sess.ExpiresAt), dbTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by token. Expiry is left to the caller.
func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var sess model.Session
	err := s.db.GetContext(ctx, &sess,
		"SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?", token)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return &sess, nil
}

// DeleteSession removes a session; unknown tokens are ignored.
func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions purges sessions that expired at or before now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", dbTime(now))
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
