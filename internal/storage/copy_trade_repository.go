package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
)

// CopyTradeRepository persists copy-trade attempts. Terminal updates
// are guarded by a status predicate so an attempt can only ever leave
// pending once.
type CopyTradeRepository struct {
	db *PostgresDB
}

// NewCopyTradeRepository creates a new copy trade repository
func NewCopyTradeRepository(db *PostgresDB) *CopyTradeRepository {
	return &CopyTradeRepository{db: db}
}

// CreatePending inserts a new attempt in pending status. The row must
// exist before the brokerage call so a crash mid-call still leaves an
// auditable record.
func (r *CopyTradeRepository) CreatePending(ctx context.Context, attempt *models.CopyTrade) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	attempt.Status = types.StatusPending
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO copy_trades (id, source_post_id, copier_id, status, requested_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		attempt.ID,
		attempt.SourcePostID,
		attempt.CopierID,
		attempt.Status,
		attempt.RequestedAmount,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create copy trade attempt: %w", err)
	}

	return nil
}

// MarkExecuted transitions a pending attempt to executed and stamps
// the execution time.
func (r *CopyTradeRepository) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	query := `
		UPDATE copy_trades
		SET status = $1, executed_at = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.db.Pool().Exec(ctx, query, types.StatusExecuted, executedAt, id, types.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark attempt executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attempt %s is not pending", id)
	}

	return nil
}

// MarkFailed transitions a pending attempt to failed with the stored
// error message. Failed rows are never deleted; they remain as an
// audit trail.
func (r *CopyTradeRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE copy_trades
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.db.Pool().Exec(ctx, query, types.StatusFailed, errorMessage, id, types.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark attempt failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attempt %s is not pending", id)
	}

	return nil
}

// HistoryByCopier returns a user's attempts newest-first, joined with
// source-post and author summaries. A non-nil cursor restricts results
// to rows created strictly before it.
func (r *CopyTradeRepository) HistoryByCopier(ctx context.Context, copierID string, cursor *time.Time, limit int) ([]*models.CopyTradeHistoryEntry, error) {
	query := `
		SELECT
			ct.id, ct.status, ct.requested_amount, ct.error_message, ct.executed_at, ct.created_at,
			p.id, p.content, p.trade_ticker, p.trade_action, p.trade_amount,
			u.username, u.display_name, u.avatar_url
		FROM copy_trades ct
		JOIN posts p ON p.id = ct.source_post_id
		JOIN users u ON u.id = p.author_id
		WHERE ct.copier_id = $1
		  AND ($2::timestamptz IS NULL OR ct.created_at < $2)
		ORDER BY ct.created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool().Query(ctx, query, copierID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query copy trade history: %w", err)
	}
	defer rows.Close()

	var entries []*models.CopyTradeHistoryEntry
	for rows.Next() {
		var entry models.CopyTradeHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Status,
			&entry.RequestedAmount,
			&entry.ErrorMessage,
			&entry.ExecutedAt,
			&entry.CreatedAt,
			&entry.Post.ID,
			&entry.Post.Content,
			&entry.Post.TradeTicker,
			&entry.Post.TradeAction,
			&entry.Post.TradeAmount,
			&entry.Post.Author.Username,
			&entry.Post.Author.DisplayName,
			&entry.Post.Author.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
