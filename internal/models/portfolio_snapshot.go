package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot represents a daily point-in-time valuation of a
// user's invested positions. One row exists per (user, calendar day);
// a same-day re-snapshot overwrites the prior value.
type PortfolioSnapshot struct {
	ID           string          `json:"id" db:"id"`
	UserID       string          `json:"userId" db:"user_id"`
	TotalValue   decimal.Decimal `json:"totalValue" db:"total_value"`
	SnapshotDate time.Time       `json:"snapshotDate" db:"snapshot_date"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}
