package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tradebit/internal/models"
)

// PostRepository reads feed posts. Post CRUD is owned by the social
// module; the copy-trade core only needs lookups.
type PostRepository struct {
	db *PostgresDB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *PostgresDB) *PostRepository {
	return &PostRepository{db: db}
}

// GetByID retrieves a post, or (nil, nil) when it does not exist
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `
		SELECT id, author_id, content, trade_ticker, trade_action, trade_amount, trade_price, trade_change_pct, created_at
		FROM posts
		WHERE id = $1
	`

	var post models.Post
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.AuthorID,
		&post.Content,
		&post.TradeTicker,
		&post.TradeAction,
		&post.TradeAmount,
		&post.TradePrice,
		&post.TradeChangePct,
		&post.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}
