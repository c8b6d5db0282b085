package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
)

// UserRepository interface for user lookups
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// PerformanceSummary holds the four-window percentage change. A nil
// field means that window has insufficient data. Percentages are
// rounded half-to-even to two decimal places.
type PerformanceSummary struct {
	Day   *decimal.Decimal `json:"day"`
	Week  *decimal.Decimal `json:"week"`
	Month *decimal.Decimal `json:"month"`
	Year  *decimal.Decimal `json:"year"`
}

// PerformanceService derives percentage-change windows from snapshot
// history. Pure reads plus arithmetic; each window is computed
// independently.
type PerformanceService struct {
	credRepo     CredentialRepository
	snapshotRepo SnapshotRepository
	userRepo     UserRepository
	cache        Cache
	now          func() time.Time
}

// NewPerformanceService creates a new performance service. cache may
// be nil.
func NewPerformanceService(
	credRepo CredentialRepository,
	snapshotRepo SnapshotRepository,
	userRepo UserRepository,
	cache Cache,
) *PerformanceService {
	return &PerformanceService{
		credRepo:     credRepo,
		snapshotRepo: snapshotRepo,
		userRepo:     userRepo,
		cache:        cache,
		now:          time.Now,
	}
}

// Summary computes the user's four-window performance. It returns
// (nil, nil) when the user has no valid credential or no snapshots;
// the API renders that as null.
func (s *PerformanceService) Summary(ctx context.Context, userID string) (*PerformanceSummary, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, types.NewServiceError(types.CodeUserNotFound, "User not found")
	}

	if s.cache != nil {
		var cached PerformanceSummary
		if s.cache.GetPerformance(ctx, userID, &cached) {
			return &cached, nil
		}
	}

	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil || !cred.IsValid {
		return nil, nil
	}

	latest, err := s.snapshotRepo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.TotalValue.IsZero() {
		return nil, nil
	}

	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	summary := &PerformanceSummary{
		Day:   s.windowChange(ctx, userID, latest, now.Add(-24*time.Hour)),
		Week:  s.windowChange(ctx, userID, latest, now.Add(-7*24*time.Hour)),
		Month: s.windowChange(ctx, userID, latest, now.Add(-30*24*time.Hour)),
		Year:  s.windowChange(ctx, userID, latest, yearStart),
	}

	if s.cache != nil {
		if err := s.cache.SetPerformance(ctx, userID, summary); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to cache performance summary")
		}
	}

	return summary, nil
}

// windowChange resolves the earliest snapshot at or after since and
// returns the percentage change against the latest snapshot, or nil
// when the window has no usable baseline. A window needs two distinct
// observations and a non-zero baseline.
func (s *PerformanceService) windowChange(ctx context.Context, userID string, latest *models.PortfolioSnapshot, since time.Time) *decimal.Decimal {
	baseline, err := s.snapshotRepo.EarliestSince(ctx, userID, since)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("userId", userID).Warn("Performance window unavailable: baseline query failed")
		return nil
	}
	if baseline == nil || baseline.TotalValue.IsZero() {
		return nil
	}
	if baseline.ID == latest.ID {
		return nil
	}

	hundred := decimal.NewFromInt(100)
	pct := latest.TotalValue.Sub(baseline.TotalValue).
		Div(baseline.TotalValue).
		Mul(hundred).
		RoundBank(2)

	return &pct
}
