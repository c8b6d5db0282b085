package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/types"
)

// CopyTrade represents one copy-trade attempt and its outcome.
// Rows are created in pending status before the brokerage call and move
// to exactly one terminal state; terminal rows are never mutated again.
type CopyTrade struct {
	ID              string                `json:"id" db:"id"`
	SourcePostID    string                `json:"sourcePostId" db:"source_post_id"`
	CopierID        string                `json:"copierId" db:"copier_id"`
	Status          types.CopyTradeStatus `json:"status" db:"status"`
	RequestedAmount decimal.Decimal       `json:"requestedAmount" db:"requested_amount"`
	ErrorMessage    *string               `json:"errorMessage,omitempty" db:"error_message"`
	ExecutedAt      *time.Time            `json:"executedAt,omitempty" db:"executed_at"`
	CreatedAt       time.Time             `json:"createdAt" db:"created_at"`
}

// CopyTradeAuthor is the author summary joined into history rows
type CopyTradeAuthor struct {
	Username    string  `json:"username"`
	DisplayName *string `json:"displayName,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

// CopyTradePost is the source-post summary joined into history rows
type CopyTradePost struct {
	ID          string             `json:"id"`
	Content     string             `json:"content"`
	TradeTicker *string            `json:"tradeTicker,omitempty"`
	TradeAction *types.TradeAction `json:"tradeAction,omitempty"`
	TradeAmount *decimal.Decimal   `json:"tradeAmount,omitempty"`
	Author      CopyTradeAuthor    `json:"author"`
}

// CopyTradeHistoryEntry is one attempt joined with its source post and author
type CopyTradeHistoryEntry struct {
	ID              string                `json:"id"`
	Status          types.CopyTradeStatus `json:"status"`
	RequestedAmount decimal.Decimal       `json:"requestedAmount"`
	ErrorMessage    *string               `json:"errorMessage,omitempty"`
	ExecutedAt      *time.Time            `json:"executedAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	Post            CopyTradePost         `json:"post"`
}
