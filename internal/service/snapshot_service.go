package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/vault"
)

// SnapshotRepository interface for snapshot data operations
type SnapshotRepository interface {
	Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	Latest(ctx context.Context, userID string) (*models.PortfolioSnapshot, error)
	EarliestSince(ctx context.Context, userID string, since time.Time) (*models.PortfolioSnapshot, error)
}

// SnapshotResult is the outcome of one snapshot. Available is false on
// any failure; snapshots never raise to their caller.
type SnapshotResult struct {
	Available bool            `json:"available"`
	Total     decimal.Decimal `json:"total"`
}

// SweepResult aggregates a full snapshot sweep
type SweepResult struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SnapshotService values a user's invested positions and records one
// row per user per calendar day.
type SnapshotService struct {
	snapshotRepo SnapshotRepository
	credRepo     CredentialRepository
	client       BrokerageClient
	vault        *vault.Vault
	cache        Cache
	concurrency  int
}

// NewSnapshotService creates a new snapshot service. cache may be nil;
// concurrency bounds the sweep fan-out.
func NewSnapshotService(
	snapshotRepo SnapshotRepository,
	credRepo CredentialRepository,
	client BrokerageClient,
	v *vault.Vault,
	cache Cache,
	concurrency int,
) *SnapshotService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &SnapshotService{
		snapshotRepo: snapshotRepo,
		credRepo:     credRepo,
		client:       client,
		vault:        v,
		cache:        cache,
		concurrency:  concurrency,
	}
}

// startOfDay truncates a time to the start of its UTC calendar day
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TakeSnapshot values the user's stock positions in USD (cash is
// excluded; only invested value is tracked) and upserts the row for
// today. All failures are absorbed into an unavailable result.
func (s *SnapshotService) TakeSnapshot(ctx context.Context, userID, apiKey string) SnapshotResult {
	logger := logging.FromContext(ctx).WithField("userId", userID)

	positions, err := s.client.GetStockPositions(ctx, apiKey)
	if err != nil {
		logger.WithError(err).Warn("Snapshot skipped: failed to fetch positions")
		return SnapshotResult{}
	}

	total := decimal.Zero
	for _, position := range positions {
		total = total.Add(position.USDBalance)
	}

	snapshot := &models.PortfolioSnapshot{
		UserID:       userID,
		TotalValue:   total,
		SnapshotDate: startOfDay(time.Now()),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.snapshotRepo.Upsert(ctx, snapshot); err != nil {
		logger.WithError(err).Warn("Snapshot skipped: failed to store row")
		return SnapshotResult{}
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cache after snapshot")
		}
	}

	return SnapshotResult{Available: true, Total: total}
}

// SweepAll snapshots every stored credential with bounded concurrency.
// One user's failure never aborts the sweep for others.
func (s *SnapshotService) SweepAll(ctx context.Context) (*SweepResult, error) {
	creds, err := s.credRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	logger.WithField("credentials", len(creds)).Info("Starting snapshot sweep")

	var (
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, cred := range creds {
		wg.Add(1)
		sem <- struct{}{}
		go func(cred *models.Credential) {
			defer wg.Done()
			defer func() { <-sem }()

			ok := s.sweepOne(ctx, cred)

			mu.Lock()
			if ok {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
		}(cred)
	}
	wg.Wait()

	result := &SweepResult{
		Total:     len(creds),
		Succeeded: succeeded,
		Failed:    failed,
	}
	logger.WithFields(map[string]interface{}{
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Snapshot sweep complete")

	return result, nil
}

func (s *SnapshotService) sweepOne(ctx context.Context, cred *models.Credential) bool {
	apiKey, err := s.vault.Decrypt(&vault.EncryptedData{
		Ciphertext: cred.Ciphertext,
		IV:         cred.IV,
		AuthTag:    cred.AuthTag,
	})
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("userId", cred.UserID).Error("Sweep skipped user: credential failed decryption")
		return false
	}

	return s.TakeSnapshot(ctx, cred.UserID, apiKey).Available
}
