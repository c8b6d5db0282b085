package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/types"
)

// Post represents a feed post, optionally carrying a trade embed.
// Posts are owned by the surrounding social CRUD; this core reads them
// only to verify copyability and to build history summaries.
type Post struct {
	ID             string             `json:"id" db:"id"`
	AuthorID       string             `json:"authorId" db:"author_id"`
	Content        string             `json:"content" db:"content"`
	TradeTicker    *string            `json:"tradeTicker,omitempty" db:"trade_ticker"`
	TradeAction    *types.TradeAction `json:"tradeAction,omitempty" db:"trade_action"`
	TradeAmount    *decimal.Decimal   `json:"tradeAmount,omitempty" db:"trade_amount"`
	TradePrice     *decimal.Decimal   `json:"tradePrice,omitempty" db:"trade_price"`
	TradeChangePct *decimal.Decimal   `json:"tradeChangePct,omitempty" db:"trade_change_pct"`
	CreatedAt      time.Time          `json:"createdAt" db:"created_at"`
}

// HasTrade reports whether the post carries a copyable trade embed.
// A post needs both a ticker and an action to be copied.
func (p *Post) HasTrade() bool {
	return p.TradeTicker != nil && *p.TradeTicker != "" && p.TradeAction != nil && p.TradeAction.Valid()
}
