package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGRepo reads and writes the users table.
type PGRepo struct {
	DB *sql.DB
}

const upsertContactSQL = `
INSERT INTO users (id, email, full_name, email_opt_out, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  full_name = EXCLUDED.full_name,
  email_opt_out = EXCLUDED.email_opt_out,
  updated_at = now()`

const selectContactSQL = `
SELECT id, email, full_name, email_opt_out, created_at, updated_at
FROM users
WHERE id = $1`

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	if _, err := r.DB.ExecContext(ctx, upsertContactSQL, user.ID, user.Email, user.FullName, user.EmailOptOut); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ID, err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := r.DB.QueryRowContext(ctx, selectContactSQL, userID).Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.EmailOptOut,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return user, nil
}
