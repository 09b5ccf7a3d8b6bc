package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// CreateSession persists an issued token.
func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	if session.Token == "" {
		return errors.New("session token required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `INSERT INTO sessions (token, user_id, username, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		session.Token, session.UserID, session.Username, session.Role, session.CreatedAt, session.ExpiresAt.UTC(),
	)
	return errors.Wrap(err, "insert session")
}

// GetSession loads a session that has not expired.
func (s *Store) GetSession(ctx context.Context, token string) (*Session, error) {
	var session Session
	err := s.queryRow(ctx, `SELECT token, user_id, username, role, created_at, expires_at FROM sessions WHERE token=?`, token).
		Scan(&session.Token, &session.UserID, &session.Username, &session.Role, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		return nil, notFound(err, "session", "")
	}
	if !session.ExpiresAt.After(time.Now()) {
		return nil, errors.Wrap(ErrNotFound, "session expired")
	}
	return &session, nil
}

// DeleteSession revokes a token. Revoking an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.exec(ctx, `DELETE FROM sessions WHERE token=?`, token)
	return errors.Wrap(err, "delete session")
}

// PurgeExpiredSessions removes sessions that expired before now and reports
// how many were dropped.
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge sessions")
	}
	return res.RowsAffected()
}
