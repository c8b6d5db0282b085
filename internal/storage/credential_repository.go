package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tradebit/internal/models"
)

// CredentialRepository handles encrypted brokerage credential persistence.
// The table enforces one row per user; key-hash uniqueness across users
// is checked through FindUserIDByKeyHash rather than by matching driver
// error text.
type CredentialRepository struct {
	db *PostgresDB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *PostgresDB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Upsert inserts or replaces the credential row for a user, resetting
// validity and refreshing the connect timestamp.
func (r *CredentialRepository) Upsert(ctx context.Context, cred *models.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	if cred.ConnectedAt.IsZero() {
		cred.ConnectedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO credentials (id, user_id, ciphertext, iv, auth_tag, key_hash, is_valid, connected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id)
		DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			iv = EXCLUDED.iv,
			auth_tag = EXCLUDED.auth_tag,
			key_hash = EXCLUDED.key_hash,
			is_valid = EXCLUDED.is_valid,
			connected_at = EXCLUDED.connected_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		cred.ID,
		cred.UserID,
		cred.Ciphertext,
		cred.IV,
		cred.AuthTag,
		cred.KeyHash,
		cred.IsValid,
		cred.ConnectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return nil
}

// GetByUserID retrieves a user's credential, or (nil, nil) when the
// user has none connected.
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	query := `
		SELECT id, user_id, ciphertext, iv, auth_tag, key_hash, is_valid, connected_at
		FROM credentials
		WHERE user_id = $1
	`

	var cred models.Credential
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&cred.ID,
		&cred.UserID,
		&cred.Ciphertext,
		&cred.IV,
		&cred.AuthTag,
		&cred.KeyHash,
		&cred.IsValid,
		&cred.ConnectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// FindUserIDByKeyHash returns the user owning a key hash, or "" when
// no user has that key connected.
func (r *CredentialRepository) FindUserIDByKeyHash(ctx context.Context, keyHash string) (string, error) {
	query := `SELECT user_id FROM credentials WHERE key_hash = $1`

	var userID string
	err := r.db.Pool().QueryRow(ctx, query, keyHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up key hash: %w", err)
	}

	return userID, nil
}

// MarkInvalid flips a credential's validity flag to false. The write
// is idempotent; concurrent writers converge.
func (r *CredentialRepository) MarkInvalid(ctx context.Context, userID string) error {
	query := `UPDATE credentials SET is_valid = false WHERE user_id = $1`

	if _, err := r.db.Pool().Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark credential invalid: %w", err)
	}
	return nil
}

// Delete removes a user's credential, reporting whether a row existed
func (r *CredentialRepository) Delete(ctx context.Context, userID string) (bool, error) {
	query := `DELETE FROM credentials WHERE user_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete credential: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// List returns all stored credentials, used by the snapshot sweep
func (r *CredentialRepository) List(ctx context.Context) ([]*models.Credential, error) {
	query := `
		SELECT id, user_id, ciphertext, iv, auth_tag, key_hash, is_valid, connected_at
		FROM credentials
		ORDER BY connected_at
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		var cred models.Credential
		if err := rows.Scan(
			&cred.ID,
			&cred.UserID,
			&cred.Ciphertext,
			&cred.IV,
			&cred.AuthTag,
			&cred.KeyHash,
			&cred.IsValid,
			&cred.ConnectedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, &cred)
	}

	return creds, rows.Err()
}
