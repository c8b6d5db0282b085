// Package config provides configuration management for the TradeBit service.
// It loads configuration from environment variables and .env files.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EncryptionKeyLength is the required key size for the credential vault
const EncryptionKeyLength = 32

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Vault     VaultConfig
	Brokerage BrokerageConfig
	Snapshot  SnapshotConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// VaultConfig holds the credential vault secret material.
// Both values must be present at startup or every vault operation
// fails closed.
type VaultConfig struct {
	// EncryptionKey is the raw 32-byte AES key, decoded from a
	// 64-character hex string in the environment.
	EncryptionKey []byte
	// KeyHashSecret keys the HMAC used for cross-user duplicate
	// detection. Independent from the encryption key.
	KeyHashSecret string
}

// BrokerageConfig holds the external brokerage API configuration
type BrokerageConfig struct {
	BaseURL           string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// SnapshotConfig holds the snapshot sweep configuration
type SnapshotConfig struct {
	// CronSecret guards the internal sweep endpoint
	CronSecret string
	// SweepConcurrency bounds how many users are snapshot in parallel
	SweepConcurrency int
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	vault, err := loadVaultConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "tradebit"),
				User:           getEnv("POSTGRES_USER", "tradebit"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 100),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Vault: vault,
		Brokerage: BrokerageConfig{
			BaseURL:           getEnv("WALLBIT_API_BASE_URL", "https://api.wallbit.io"),
			RequestTimeout:    getEnvAsDuration("WALLBIT_REQUEST_TIMEOUT", 15*time.Second),
			RequestsPerSecond: float64(getEnvAsInt("WALLBIT_REQUESTS_PER_SECOND", 10)),
			CacheTTL:          getEnvAsDuration("PORTFOLIO_CACHE_TTL", 20*time.Second),
		},
		Snapshot: SnapshotConfig{
			CronSecret:       getEnv("SNAPSHOT_CRON_SECRET", ""),
			SweepConcurrency: getEnvAsInt("SNAPSHOT_SWEEP_CONCURRENCY", 4),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// loadVaultConfig loads and validates the vault secret material.
// The encryption key must be a 64-character hex string (32 bytes).
func loadVaultConfig() (VaultConfig, error) {
	keyHex := os.Getenv("ENCRYPTION_KEY")
	if len(keyHex) != EncryptionKeyLength*2 {
		return VaultConfig{}, fmt.Errorf("ENCRYPTION_KEY must be a %d-char hex string (%d bytes)", EncryptionKeyLength*2, EncryptionKeyLength)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return VaultConfig{}, fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}

	secret := os.Getenv("KEY_HASH_SECRET")
	if secret == "" {
		return VaultConfig{}, fmt.Errorf("KEY_HASH_SECRET env var is required")
	}

	return VaultConfig{
		EncryptionKey: key,
		KeyHashSecret: secret,
	}, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
