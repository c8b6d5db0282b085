package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/config"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
	"github.com/tradebit/internal/vault"
)

// Mock repositories and clients for testing

func testVault() *vault.Vault {
	v, err := vault.New(config.VaultConfig{
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		KeyHashSecret: "test-hash-secret",
	})
	if err != nil {
		panic(err)
	}
	return v
}

type mockCredentialRepo struct {
	mu    sync.Mutex
	creds map[string]*models.Credential
}

func newMockCredentialRepo() *mockCredentialRepo {
	return &mockCredentialRepo{creds: make(map[string]*models.Credential)}
}

func (m *mockCredentialRepo) Upsert(ctx context.Context, cred *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred.ID == "" {
		cred.ID = fmt.Sprintf("cred-%d", len(m.creds)+1)
	}
	copied := *cred
	m.creds[cred.UserID] = &copied
	return nil
}

func (m *mockCredentialRepo) GetByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred, ok := m.creds[userID]; ok {
		copied := *cred
		return &copied, nil
	}
	return nil, nil
}

func (m *mockCredentialRepo) FindUserIDByKeyHash(ctx context.Context, keyHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cred := range m.creds {
		if cred.KeyHash == keyHash {
			return cred.UserID, nil
		}
	}
	return "", nil
}

func (m *mockCredentialRepo) MarkInvalid(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cred, ok := m.creds[userID]; ok {
		cred.IsValid = false
	}
	return nil
}

func (m *mockCredentialRepo) Delete(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[userID]; !ok {
		return false, nil
	}
	delete(m.creds, userID)
	return true, nil
}

func (m *mockCredentialRepo) List(ctx context.Context) ([]*models.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var creds []*models.Credential
	for _, cred := range m.creds {
		copied := *cred
		creds = append(creds, &copied)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].UserID < creds[j].UserID })
	return creds, nil
}

type mockBrokerageClient struct {
	mu             sync.Mutex
	validKeys      map[string]bool
	validateErr    error
	positions      map[string][]brokerage.StockPosition
	positionsErr   error
	balances       []brokerage.Balance
	asset          *brokerage.Asset
	tradeErr       error
	tradeResponses []brokerage.TradeResponse
	executedTrades []brokerage.TradeRequest
}

func newMockBrokerageClient() *mockBrokerageClient {
	return &mockBrokerageClient{
		validKeys: make(map[string]bool),
		positions: make(map[string][]brokerage.StockPosition),
	}
}

func (m *mockBrokerageClient) ValidateKey(ctx context.Context, apiKey string) (bool, error) {
	if m.validateErr != nil {
		return false, m.validateErr
	}
	return m.validKeys[apiKey], nil
}

func (m *mockBrokerageClient) GetCheckingBalance(ctx context.Context, apiKey string) ([]brokerage.Balance, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.balances, nil
}

func (m *mockBrokerageClient) GetStockPositions(ctx context.Context, apiKey string) ([]brokerage.StockPosition, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return m.positions[apiKey], nil
}

func (m *mockBrokerageClient) GetAsset(ctx context.Context, apiKey, symbol string) (*brokerage.Asset, error) {
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	if m.asset != nil {
		return m.asset, nil
	}
	return &brokerage.Asset{Symbol: symbol}, nil
}

func (m *mockBrokerageClient) ExecuteTrade(ctx context.Context, apiKey string, trade *brokerage.TradeRequest) (*brokerage.TradeResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tradeErr != nil {
		return nil, m.tradeErr
	}
	m.executedTrades = append(m.executedTrades, *trade)
	resp := brokerage.TradeResponse{ID: fmt.Sprintf("broker-trade-%d", len(m.executedTrades)), Status: "filled", Symbol: trade.Symbol}
	m.tradeResponses = append(m.tradeResponses, resp)
	return &resp, nil
}

type mockPostRepo struct {
	posts map[string]*models.Post
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[string]*models.Post)}
}

func (m *mockPostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if post, ok := m.posts[id]; ok {
		return post, nil
	}
	return nil, nil
}

type mockCopyTradeRepo struct {
	mu       sync.Mutex
	attempts map[string]*models.CopyTrade
	order    []string
}

func newMockCopyTradeRepo() *mockCopyTradeRepo {
	return &mockCopyTradeRepo{attempts: make(map[string]*models.CopyTrade)}
}

func (m *mockCopyTradeRepo) CreatePending(ctx context.Context, attempt *models.CopyTrade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = fmt.Sprintf("attempt-%d", len(m.attempts)+1)
	}
	attempt.Status = types.StatusPending
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	copied := *attempt
	m.attempts[attempt.ID] = &copied
	m.order = append(m.order, attempt.ID)
	return nil
}

func (m *mockCopyTradeRepo) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[id]
	if !ok || attempt.Status != types.StatusPending {
		return fmt.Errorf("attempt %s is not pending", id)
	}
	attempt.Status = types.StatusExecuted
	attempt.ExecutedAt = &executedAt
	return nil
}

func (m *mockCopyTradeRepo) MarkFailed(ctx context.Context, id, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[id]
	if !ok || attempt.Status != types.StatusPending {
		return fmt.Errorf("attempt %s is not pending", id)
	}
	attempt.Status = types.StatusFailed
	attempt.ErrorMessage = &errorMessage
	return nil
}

func (m *mockCopyTradeRepo) HistoryByCopier(ctx context.Context, copierID string, cursor *time.Time, limit int) ([]*models.CopyTradeHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*models.CopyTrade
	for _, attempt := range m.attempts {
		if attempt.CopierID != copierID {
			continue
		}
		if cursor != nil && !attempt.CreatedAt.Before(*cursor) {
			continue
		}
		all = append(all, attempt)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	var entries []*models.CopyTradeHistoryEntry
	for _, attempt := range all {
		if len(entries) == limit {
			break
		}
		entries = append(entries, &models.CopyTradeHistoryEntry{
			ID:              attempt.ID,
			Status:          attempt.Status,
			RequestedAmount: attempt.RequestedAmount,
			ErrorMessage:    attempt.ErrorMessage,
			ExecutedAt:      attempt.ExecutedAt,
			CreatedAt:       attempt.CreatedAt,
			Post:            models.CopyTradePost{ID: attempt.SourcePostID},
		})
	}
	return entries, nil
}

type mockSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]map[time.Time]*models.PortfolioSnapshot
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{snapshots: make(map[string]map[time.Time]*models.PortfolioSnapshot)}
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay, ok := m.snapshots[snapshot.UserID]
	if !ok {
		byDay = make(map[time.Time]*models.PortfolioSnapshot)
		m.snapshots[snapshot.UserID] = byDay
	}
	day := snapshot.SnapshotDate
	if existing, ok := byDay[day]; ok {
		existing.TotalValue = snapshot.TotalValue
		existing.CreatedAt = snapshot.CreatedAt
		snapshot.ID = existing.ID
		return nil
	}
	if snapshot.ID == "" {
		snapshot.ID = fmt.Sprintf("snap-%s-%s", snapshot.UserID, day.Format("2006-01-02"))
	}
	copied := *snapshot
	byDay[day] = &copied
	return nil
}

func (m *mockSnapshotRepo) sorted(userID string) []*models.PortfolioSnapshot {
	var all []*models.PortfolioSnapshot
	for _, snapshot := range m.snapshots[userID] {
		all = append(all, snapshot)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SnapshotDate.Before(all[j].SnapshotDate) })
	return all
}

func (m *mockSnapshotRepo) Latest(ctx context.Context, userID string) (*models.PortfolioSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted(userID)
	if len(all) == 0 {
		return nil, nil
	}
	copied := *all[len(all)-1]
	return &copied, nil
}

func (m *mockSnapshotRepo) EarliestSince(ctx context.Context, userID string, since time.Time) (*models.PortfolioSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, snapshot := range m.sorted(userID) {
		if !snapshot.SnapshotDate.Before(since) {
			copied := *snapshot
			return &copied, nil
		}
	}
	return nil, nil
}

// addSnapshot seeds a snapshot for a user on a given day
func (m *mockSnapshotRepo) addSnapshot(userID string, day time.Time, value decimal.Decimal) {
	_ = m.Upsert(context.Background(), &models.PortfolioSnapshot{
		UserID:       userID,
		TotalValue:   value,
		SnapshotDate: day,
		CreatedAt:    day,
	})
}

type mockCache struct {
	mu          sync.Mutex
	portfolios  map[string][]brokerage.StockPosition
	summaries   map[string]PerformanceSummary
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{
		portfolios: make(map[string][]brokerage.StockPosition),
		summaries:  make(map[string]PerformanceSummary),
	}
}

func (m *mockCache) GetPortfolio(ctx context.Context, userID string) ([]brokerage.StockPosition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	positions, ok := m.portfolios[userID]
	return positions, ok
}

func (m *mockCache) SetPortfolio(ctx context.Context, userID string, positions []brokerage.StockPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[userID] = positions
	return nil
}

func (m *mockCache) GetPerformance(ctx context.Context, userID string, out interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary, ok := m.summaries[userID]
	if !ok {
		return false
	}
	if target, ok := out.(*PerformanceSummary); ok {
		*target = summary
		return true
	}
	return false
}

func (m *mockCache) SetPerformance(ctx context.Context, userID string, summary interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := summary.(*PerformanceSummary); ok {
		m.summaries[userID] = *s
	}
	return nil
}

func (m *mockCache) InvalidateUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.portfolios, userID)
	delete(m.summaries, userID)
	m.invalidated = append(m.invalidated, userID)
	return nil
}

type mockUserRepo struct {
	users map[string]*models.User
}

func newMockUserRepo(ids ...string) *mockUserRepo {
	users := make(map[string]*models.User)
	for _, id := range ids {
		users[id] = &models.User{ID: id, Username: "user-" + id}
	}
	return &mockUserRepo{users: users}
}

func (m *mockUserRepo) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if user, ok := m.users[userID]; ok {
		return user, nil
	}
	return nil, nil
}

type mockSnapshotTaker struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newMockSnapshotTaker() *mockSnapshotTaker {
	return &mockSnapshotTaker{done: make(chan struct{}, 8)}
}

func (m *mockSnapshotTaker) TakeSnapshot(ctx context.Context, userID, apiKey string) SnapshotResult {
	m.mu.Lock()
	m.calls = append(m.calls, userID)
	m.mu.Unlock()
	m.done <- struct{}{}
	return SnapshotResult{Available: true}
}
