package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slanderboard/internal/domain"
)

// EnsureUser returns the user with the given email, creating it if needed
func (r *Repository) EnsureUser(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id::text, email
	`, strings.ToLower(email)).Scan(&u.ID, &u.Email)
	if err != nil {
		return nil, queryError("ensure user", err)
	}
	return &u, nil
}

// ClaimUsername sets the caller's username, creating the profile on first
// claim. A name held by another user yields domain.ErrUsernameTaken.
func (r *Repository) ClaimUsername(ctx context.Context, userID, username string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, username, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET username = EXCLUDED.username, updated_at = EXCLUDED.updated_at
	`, userID, username, time.Now().UTC())
	return queryError("claim username", err)
}

// Username returns the user's username, or "" when none has been claimed
func (r *Repository) Username(ctx context.Context, userID string) (string, error) {
	var username *string
	err := r.pool.QueryRow(ctx, `SELECT username FROM profiles WHERE user_id = $1`, userID).Scan(&username)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", queryError("get profile", err)
	}
	if username == nil {
		return "", nil
	}
	return *username, nil
}
