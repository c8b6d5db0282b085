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

// SnapshotRepository persists daily portfolio valuations. The table
// carries unique(user_id, snapshot_date) so a same-day re-snapshot
// overwrites rather than duplicates.
type SnapshotRepository struct {
	db *PostgresDB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *PostgresDB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert writes a snapshot keyed by (user, calendar day), overwriting
// any existing value for that day.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.New().String()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO portfolio_snapshots (id, user_id, total_value, snapshot_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, snapshot_date)
		DO UPDATE SET
			total_value = EXCLUDED.total_value,
			created_at = EXCLUDED.created_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.TotalValue,
		snapshot.SnapshotDate,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// Latest returns the user's most recent snapshot, or (nil, nil) when
// none exist.
func (r *SnapshotRepository) Latest(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, user_id, total_value, snapshot_date, created_at
		FROM portfolio_snapshots
		WHERE user_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	return r.queryOne(ctx, query, userID)
}

// EarliestSince returns the earliest snapshot with a date at or after
// since, or (nil, nil) when the window is empty. This is the baseline
// for a performance window.
func (r *SnapshotRepository) EarliestSince(ctx context.Context, userID string, since time.Time) (*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, user_id, total_value, snapshot_date, created_at
		FROM portfolio_snapshots
		WHERE user_id = $1 AND snapshot_date >= $2
		ORDER BY snapshot_date ASC
		LIMIT 1
	`

	return r.queryOne(ctx, query, userID, since)
}

func (r *SnapshotRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.PortfolioSnapshot, error) {
	var snapshot models.PortfolioSnapshot
	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&snapshot.ID,
		&snapshot.UserID,
		&snapshot.TotalValue,
		&snapshot.SnapshotDate,
		&snapshot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	return &snapshot, nil
}
