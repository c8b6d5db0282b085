// Package main provides the API server entry point for the TradeBit service.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradebit/internal/api"
	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/config"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/service"
	"github.com/tradebit/internal/storage"
	"github.com/tradebit/internal/vault"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize the credential vault
	credentialVault, err := vault.New(cfg.Vault)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize credential vault")
	}

	// Initialize the brokerage client
	brokerageClient := brokerage.NewClient(
		cfg.Brokerage.BaseURL,
		cfg.Brokerage.RequestTimeout,
		cfg.Brokerage.RequestsPerSecond,
	)

	// Initialize repositories
	credentialRepo := storage.NewCredentialRepository(postgres)
	postRepo := storage.NewPostRepository(postgres)
	copyTradeRepo := storage.NewCopyTradeRepository(postgres)
	snapshotRepo := storage.NewSnapshotRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)

	// Initialize cache service
	cacheService := storage.NewCacheService(redis, cfg.Brokerage.CacheTTL)

	// Initialize services
	logger.Info("Initializing services...")

	snapshotService := service.NewSnapshotService(
		snapshotRepo,
		credentialRepo,
		brokerageClient,
		credentialVault,
		cacheService,
		cfg.Snapshot.SweepConcurrency,
	)

	credentialService := service.NewCredentialService(
		credentialRepo,
		credentialVault,
		brokerageClient,
		snapshotService,
		cacheService,
	)

	copyTradeEngine := service.NewCopyTradeEngine(
		postRepo,
		copyTradeRepo,
		credentialService,
		brokerageClient,
	)

	performanceService := service.NewPerformanceService(
		credentialRepo,
		snapshotRepo,
		userRepo,
		cacheService,
	)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		RateLimitRPS:    cfg.RateLimit.RequestsPerSecond,
		RateLimitBurst:  cfg.RateLimit.Burst,
		CronSecret:      cfg.Snapshot.CronSecret,
	}

	server := api.NewServer(
		serverConfig,
		credentialService,
		copyTradeEngine,
		performanceService,
		snapshotService,
		postgres,
	)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
