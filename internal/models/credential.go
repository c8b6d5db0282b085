// Package models provides data models for the TradeBit service.
package models

import "time"

// Credential represents a user's encrypted brokerage API key.
// At most one row exists per user; the plaintext key never leaves
// the vault boundary unencrypted.
type Credential struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"userId" db:"user_id"`
	Ciphertext  string    `json:"-" db:"ciphertext"`
	IV          string    `json:"-" db:"iv"`
	AuthTag     string    `json:"-" db:"auth_tag"`
	KeyHash     string    `json:"-" db:"key_hash"`
	IsValid     bool      `json:"isValid" db:"is_valid"`
	ConnectedAt time.Time `json:"connectedAt" db:"connected_at"`
}
