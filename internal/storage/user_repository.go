package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradebit/internal/models"
)

// UserRepository reads user accounts. Registration and authentication
// are owned by the surrounding auth module.
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user, or (nil, nil) when none exists
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, username, display_name, avatar_url, bio, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.queryOne(ctx, query, id)
}

// GetByUsername retrieves a user by username, or (nil, nil) when none exists
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, email, username, display_name, avatar_url, bio, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	return r.queryOne(ctx, query, username)
}

func (r *UserRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Bio,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
