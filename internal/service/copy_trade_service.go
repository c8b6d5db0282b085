package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
)

// PostRepository interface for source-post lookups
type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
}

// CopyTradeRepository interface for attempt persistence
type CopyTradeRepository interface {
	CreatePending(ctx context.Context, attempt *models.CopyTrade) error
	MarkExecuted(ctx context.Context, id string, executedAt time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	HistoryByCopier(ctx context.Context, copierID string, cursor *time.Time, limit int) ([]*models.CopyTradeHistoryEntry, error)
}

// KeyResolver resolves a user's decrypted brokerage key
type KeyResolver interface {
	DecryptedKey(ctx context.Context, userID string) (string, error)
}

// CopyTradeResult reports a successful execution
type CopyTradeResult struct {
	Success bool   `json:"success"`
	TradeID string `json:"tradeId"`
}

// CopyTradeHistory is one page of a user's attempts
type CopyTradeHistory struct {
	Trades     []*models.CopyTradeHistoryEntry `json:"trades"`
	NextCursor *string                         `json:"nextCursor"`
}

// DefaultHistoryLimit is the page size when the caller specifies none
const DefaultHistoryLimit = 20

// CopyTradeEngine orchestrates copy-trade execution. Each attempt
// moves pending -> executed or pending -> failed, exactly once.
type CopyTradeEngine struct {
	postRepo    PostRepository
	attemptRepo CopyTradeRepository
	keys        KeyResolver
	client      BrokerageClient
}

// NewCopyTradeEngine creates a new copy-trade engine
func NewCopyTradeEngine(
	postRepo PostRepository,
	attemptRepo CopyTradeRepository,
	keys KeyResolver,
	client BrokerageClient,
) *CopyTradeEngine {
	return &CopyTradeEngine{
		postRepo:    postRepo,
		attemptRepo: attemptRepo,
		keys:        keys,
		client:      client,
	}
}

// Execute copies the trade embedded in a post. Validation and
// eligibility errors short-circuit before any attempt row exists; once
// the pending row is written, every brokerage outcome is captured into
// a terminal state.
func (e *CopyTradeEngine) Execute(ctx context.Context, copierID, postID string, amount decimal.Decimal) (*CopyTradeResult, error) {
	if !amount.IsPositive() {
		return nil, types.NewServiceError(types.CodeInvalidInput, "Amount must be positive")
	}

	post, err := e.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, types.NewServiceError(types.CodePostNotFound, "Post not found")
	}
	if !post.HasTrade() {
		return nil, types.NewServiceError(types.CodeNotCopyable, "Post has no trade to copy")
	}

	// NotConnected / InvalidCredential propagate unchanged; no attempt
	// row is recorded for users who were never eligible to trade.
	apiKey, err := e.keys.DecryptedKey(ctx, copierID)
	if err != nil {
		return nil, err
	}

	attempt := &models.CopyTrade{
		SourcePostID:    postID,
		CopierID:        copierID,
		RequestedAmount: amount,
	}
	if err := e.attemptRepo.CreatePending(ctx, attempt); err != nil {
		return nil, err
	}

	// Symbol and direction come from the post, not the client request,
	// so a copier cannot trade into a different ticker than was shared.
	trade := &brokerage.TradeRequest{
		Symbol:    *post.TradeTicker,
		Direction: *post.TradeAction,
		Currency:  "USD",
		OrderType: types.OrderMarket,
		Amount:    &amount,
	}

	if _, err := e.client.ExecuteTrade(ctx, apiKey, trade); err != nil {
		return nil, e.failAttempt(ctx, attempt.ID, err)
	}

	if err := e.attemptRepo.MarkExecuted(ctx, attempt.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return &CopyTradeResult{Success: true, TradeID: attempt.ID}, nil
}

// failAttempt records a terminal failed state and converts the cause
// into a request-level error. Brokerage messages pass through only
// when the failure was a typed brokerage error.
func (e *CopyTradeEngine) failAttempt(ctx context.Context, attemptID string, cause error) error {
	message := "Trade execution failed"
	var apiErr *brokerage.APIError
	if errors.As(cause, &apiErr) {
		message = apiErr.Message
	}

	if err := e.attemptRepo.MarkFailed(ctx, attemptID, message); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("attemptId", attemptID).Error("Failed to record terminal attempt state")
	}

	return types.NewServiceError(types.CodeTradeFailed, message)
}

// History returns a user's attempts newest-first with strictly-before
// cursor pagination. A next cursor is returned only on a full page.
func (e *CopyTradeEngine) History(ctx context.Context, copierID string, cursor *time.Time, limit int) (*CopyTradeHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	entries, err := e.attemptRepo.HistoryByCopier(ctx, copierID, cursor, limit)
	if err != nil {
		return nil, err
	}

	history := &CopyTradeHistory{Trades: entries}
	if len(entries) == limit {
		next := entries[len(entries)-1].CreatedAt.Format(time.RFC3339Nano)
		history.NextCursor = &next
	}

	return history, nil
}
