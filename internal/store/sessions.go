package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is one refresh-token session. RefreshToken holds the SHA-256 hash
// of the opaque token, never the token itself.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	UserAgent    string
	IP           string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

const sessionColumns = `id, user_id, refresh_token, user_agent, ip, expires_at, created_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshToken, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

// CreateSession persists a refresh-token session.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
VALUES ($1, $2, $3, $4, $5) RETURNING `+sessionColumns,
		sess.UserID, sess.RefreshToken, sess.UserAgent, sess.IP, sess.ExpiresAt)
	return scanSession(row)
}

// GetSessionByToken looks a session up by hashed refresh token.
func (s *Store) GetSessionByToken(ctx context.Context, hashedToken string) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	sess, err := scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM sessions WHERE refresh_token = $1`, hashedToken))
	return sess, mapNoRows(err)
}

// RotateSessionToken swaps the hashed token and expiry on an existing session.
func (s *Store) RotateSessionToken(ctx context.Context, id uuid.UUID, hashedToken string, expiresAt time.Time) (Session, error) {
	if err := s.ready(); err != nil {
		return Session{}, err
	}
	sess, err := scanSession(s.pool.QueryRow(ctx, `UPDATE sessions
SET refresh_token = $2, expires_at = $3 WHERE id = $1 RETURNING `+sessionColumns,
		id, hashedToken, expiresAt))
	return sess, mapNoRows(err)
}

// DeleteSessionByToken revokes a single session.
func (s *Store) DeleteSessionByToken(ctx context.Context, hashedToken string) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, hashedToken)
	return err
}

// DeleteSessionsByUser revokes every session a user holds.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}
