// Package vault provides authenticated symmetric encryption for brokerage
// API keys, plus a deterministic keyed hash used for cross-user duplicate
// detection. Secret material is injected at construction; the package
// never reads the environment at call time.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/tradebit/internal/config"
)

const (
	// NonceLength is the GCM nonce size in bytes (96 bits)
	NonceLength = 12
	// tagLength is the GCM authentication tag size in bytes
	tagLength = 16
)

// ConfigurationError indicates missing or malformed secret material.
// It is not user-recoverable; it means the process was started without
// a valid vault configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vault configuration error: %s", e.Reason)
}

// IntegrityError indicates that a ciphertext failed authentication on
// decrypt. It means tampering, corruption, or a wrong key; the caller
// must never see partially decrypted plaintext.
type IntegrityError struct {
	Cause error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("vault integrity error: ciphertext failed authentication: %v", e.Cause)
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}

// EncryptedData is the stored form of an encrypted API key.
// All three fields are base64-encoded.
type EncryptedData struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Vault encrypts, decrypts and hashes brokerage API keys
type Vault struct {
	aead       cipher.AEAD
	hashSecret []byte
}

// New creates a vault from the injected configuration. The encryption
// key must be exactly 32 bytes and the hash secret non-empty.
func New(cfg config.VaultConfig) (*Vault, error) {
	if len(cfg.EncryptionKey) != config.EncryptionKeyLength {
		return nil, &ConfigurationError{
			Reason: fmt.Sprintf("encryption key must be %d bytes, got %d", config.EncryptionKeyLength, len(cfg.EncryptionKey)),
		}
	}
	if cfg.KeyHashSecret == "" {
		return nil, &ConfigurationError{Reason: "key hash secret is unset"}
	}

	block, err := aes.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	return &Vault{
		aead:       aead,
		hashSecret: []byte(cfg.KeyHashSecret),
	}, nil
}

// Encrypt encrypts a plaintext API key with a fresh random nonce.
// The ciphertext and authentication tag are stored separately so the
// tag can be verified independently of ciphertext length.
func (v *Vault) Encrypt(plaintext string) (*EncryptedData, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split them for storage
	ciphertext := sealed[:len(sealed)-tagLength]
	authTag := sealed[len(sealed)-tagLength:]

	return &EncryptedData{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		AuthTag:    base64.StdEncoding.EncodeToString(authTag),
	}, nil
}

// Decrypt verifies and decrypts stored credential data. Any tampering
// with the ciphertext, nonce or tag yields an IntegrityError, never a
// corrupted plaintext.
func (v *Vault) Decrypt(data *EncryptedData) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(data.Ciphertext)
	if err != nil {
		return "", &IntegrityError{Cause: fmt.Errorf("invalid ciphertext encoding: %w", err)}
	}

	nonce, err := base64.StdEncoding.DecodeString(data.IV)
	if err != nil {
		return "", &IntegrityError{Cause: fmt.Errorf("invalid iv encoding: %w", err)}
	}
	if len(nonce) != NonceLength {
		return "", &IntegrityError{Cause: fmt.Errorf("iv must be %d bytes, got %d", NonceLength, len(nonce))}
	}

	authTag, err := base64.StdEncoding.DecodeString(data.AuthTag)
	if err != nil {
		return "", &IntegrityError{Cause: fmt.Errorf("invalid auth tag encoding: %w", err)}
	}

	sealed := append(append([]byte{}, ciphertext...), authTag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &IntegrityError{Cause: err}
	}

	return string(plaintext), nil
}

// HashKey returns a deterministic HMAC-SHA256 hex digest of the
// plaintext key. Used only for equality comparison across users,
// never for decryption.
func (v *Vault) HashKey(plaintext string) string {
	mac := hmac.New(sha256.New, v.hashSecret)
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}
