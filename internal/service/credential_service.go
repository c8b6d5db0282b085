// Package service implements the copy-trade, credential, snapshot and
// performance business logic.
package service

import (
	"context"
	"time"

	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/models"
	"github.com/tradebit/internal/types"
	"github.com/tradebit/internal/vault"
)

// Repository and client interfaces for dependency injection

// CredentialRepository interface for credential data operations
type CredentialRepository interface {
	Upsert(ctx context.Context, cred *models.Credential) error
	GetByUserID(ctx context.Context, userID string) (*models.Credential, error)
	FindUserIDByKeyHash(ctx context.Context, keyHash string) (string, error)
	MarkInvalid(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) (bool, error)
	List(ctx context.Context) ([]*models.Credential, error)
}

// BrokerageClient interface for the external brokerage API
type BrokerageClient interface {
	ValidateKey(ctx context.Context, apiKey string) (bool, error)
	GetCheckingBalance(ctx context.Context, apiKey string) ([]brokerage.Balance, error)
	GetStockPositions(ctx context.Context, apiKey string) ([]brokerage.StockPosition, error)
	GetAsset(ctx context.Context, apiKey, symbol string) (*brokerage.Asset, error)
	ExecuteTrade(ctx context.Context, apiKey string, trade *brokerage.TradeRequest) (*brokerage.TradeResponse, error)
}

// Cache interface for short-TTL caching; a nil Cache disables caching
type Cache interface {
	GetPortfolio(ctx context.Context, userID string) ([]brokerage.StockPosition, bool)
	SetPortfolio(ctx context.Context, userID string, positions []brokerage.StockPosition) error
	GetPerformance(ctx context.Context, userID string, out interface{}) bool
	SetPerformance(ctx context.Context, userID string, summary interface{}) error
	InvalidateUser(ctx context.Context, userID string) error
}

// SnapshotTaker takes an initial snapshot after a successful connect
type SnapshotTaker interface {
	TakeSnapshot(ctx context.Context, userID, apiKey string) SnapshotResult
}

// ConnectionStatus reports whether a user has a credential on file
type ConnectionStatus struct {
	Connected bool `json:"connected"`
	IsValid   bool `json:"isValid"`
}

// CredentialService owns the one-credential-per-user invariant and the
// cross-user key uniqueness check.
type CredentialService struct {
	credRepo  CredentialRepository
	vault     *vault.Vault
	client    BrokerageClient
	snapshots SnapshotTaker
	cache     Cache
}

// NewCredentialService creates a new credential service. snapshots and
// cache may be nil.
func NewCredentialService(
	credRepo CredentialRepository,
	v *vault.Vault,
	client BrokerageClient,
	snapshots SnapshotTaker,
	cache Cache,
) *CredentialService {
	return &CredentialService{
		credRepo:  credRepo,
		vault:     v,
		client:    client,
		snapshots: snapshots,
		cache:     cache,
	}
}

// Connect validates an API key against the brokerage, enforces global
// key-to-account uniqueness, and stores the encrypted credential. A
// successful connect triggers a detached initial portfolio snapshot;
// snapshot failure never fails the connect.
func (s *CredentialService) Connect(ctx context.Context, userID, apiKey string) error {
	valid, err := s.client.ValidateKey(ctx, apiKey)
	if err != nil {
		return err
	}
	if !valid {
		return types.NewServiceError(types.CodeInvalidCredential, "Invalid brokerage API key")
	}

	keyHash := s.vault.HashKey(apiKey)
	owner, err := s.credRepo.FindUserIDByKeyHash(ctx, keyHash)
	if err != nil {
		return err
	}
	if owner != "" && owner != userID {
		return types.NewServiceError(types.CodeDuplicateCredential, "This API key is already connected to another account")
	}

	encrypted, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return err
	}

	cred := &models.Credential{
		UserID:      userID,
		Ciphertext:  encrypted.Ciphertext,
		IV:          encrypted.IV,
		AuthTag:     encrypted.AuthTag,
		KeyHash:     keyHash,
		IsValid:     true,
		ConnectedAt: time.Now().UTC(),
	}
	if err := s.credRepo.Upsert(ctx, cred); err != nil {
		return err
	}

	if s.snapshots != nil {
		go s.takeInitialSnapshot(userID, apiKey)
	}

	return nil
}

// takeInitialSnapshot runs detached from the connect request with its
// own deadline. TakeSnapshot absorbs all failures by contract.
func (s *CredentialService) takeInitialSnapshot(userID, apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result := s.snapshots.TakeSnapshot(ctx, userID, apiKey)
	if !result.Available {
		logging.GetGlobalLogger().WithField("userId", userID).Warn("Initial portfolio snapshot unavailable")
	}
}

// Disconnect deletes the user's credential
func (s *CredentialService) Disconnect(ctx context.Context, userID string) error {
	deleted, err := s.credRepo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return types.NewServiceError(types.CodeNotConnected, "No brokerage account connected")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate cache on disconnect")
		}
	}

	return nil
}

// Status reports connection state without erroring when no credential
// exists.
func (s *CredentialService) Status(ctx context.Context, userID string) (*ConnectionStatus, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return &ConnectionStatus{Connected: false, IsValid: false}, nil
	}

	return &ConnectionStatus{Connected: true, IsValid: cred.IsValid}, nil
}

// DecryptedKey resolves the user's plaintext API key for immediate use.
// The plaintext must never be logged or persisted by callers.
func (s *CredentialService) DecryptedKey(ctx context.Context, userID string) (string, error) {
	cred, err := s.credRepo.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", types.NewServiceError(types.CodeNotConnected, "No brokerage account connected")
	}
	if !cred.IsValid {
		return "", types.NewServiceError(types.CodeInvalidCredential, "Brokerage API key is no longer valid. Please reconnect.")
	}

	return s.vault.Decrypt(&vault.EncryptedData{
		Ciphertext: cred.Ciphertext,
		IV:         cred.IV,
		AuthTag:    cred.AuthTag,
	})
}

// Portfolio fetches the user's live stock positions. A 401/403 from
// the brokerage marks the credential invalid so the next call
// short-circuits without a remote round trip.
func (s *CredentialService) Portfolio(ctx context.Context, userID string) ([]brokerage.StockPosition, error) {
	if s.cache != nil {
		if positions, ok := s.cache.GetPortfolio(ctx, userID); ok {
			return positions, nil
		}
	}

	apiKey, err := s.DecryptedKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions, err := s.client.GetStockPositions(ctx, apiKey)
	if err != nil {
		return nil, s.translateAuthError(ctx, userID, err)
	}

	if s.cache != nil {
		if err := s.cache.SetPortfolio(ctx, userID, positions); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to cache portfolio")
		}
	}

	return positions, nil
}

// CheckingBalance fetches the user's cash balances
func (s *CredentialService) CheckingBalance(ctx context.Context, userID string) ([]brokerage.Balance, error) {
	apiKey, err := s.DecryptedKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	balances, err := s.client.GetCheckingBalance(ctx, apiKey)
	if err != nil {
		return nil, s.translateAuthError(ctx, userID, err)
	}

	return balances, nil
}

// AssetDetails fetches details for a single ticker
func (s *CredentialService) AssetDetails(ctx context.Context, userID, symbol string) (*brokerage.Asset, error) {
	apiKey, err := s.DecryptedKey(ctx, userID)
	if err != nil {
		return nil, err
	}

	asset, err := s.client.GetAsset(ctx, apiKey, symbol)
	if err != nil {
		return nil, s.translateAuthError(ctx, userID, err)
	}

	return asset, nil
}

// translateAuthError converts a brokerage auth rejection into an
// InvalidCredential error after flipping the stored validity flag.
// Other errors pass through untouched.
func (s *CredentialService) translateAuthError(ctx context.Context, userID string, err error) error {
	if !brokerage.IsAuthError(err) {
		return err
	}

	if markErr := s.credRepo.MarkInvalid(ctx, userID); markErr != nil {
		logging.FromContext(ctx).WithError(markErr).Error("Failed to mark credential invalid")
	}

	return types.NewServiceError(types.CodeInvalidCredential, "Brokerage API key is no longer valid. Please reconnect.")
}
