package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is one account. Role is "shopper", "vendor", or "admin".
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Name         string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const userColumns = `id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts an account. Emails are stored lowercased.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name, role string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO users (email, password_hash, name, role)
VALUES ($1, $2, $3, $4) RETURNING `+userColumns,
		strings.ToLower(strings.TrimSpace(email)), passwordHash, name, role)
	return scanUser(row)
}

// GetUserByEmail looks an account up for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	return u, mapNoRows(err)
}

// GetUser returns an account by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+`
FROM users WHERE id = $1`, id))
	return u, mapNoRows(err)
}

// UpdateUserRole promotes or demotes an account.
func (s *Store) UpdateUserRole(ctx context.Context, id uuid.UUID, role string) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = now()
WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
