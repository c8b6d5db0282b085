// Package main provides a one-shot snapshot sweep for cron or manual runs.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/tradebit/internal/brokerage"
	"github.com/tradebit/internal/config"
	"github.com/tradebit/internal/logging"
	"github.com/tradebit/internal/service"
	"github.com/tradebit/internal/storage"
	"github.com/tradebit/internal/vault"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall deadline for the sweep")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

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

	credentialVault, err := vault.New(cfg.Vault)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize credential vault")
	}

	brokerageClient := brokerage.NewClient(
		cfg.Brokerage.BaseURL,
		cfg.Brokerage.RequestTimeout,
		cfg.Brokerage.RequestsPerSecond,
	)

	snapshotService := service.NewSnapshotService(
		storage.NewSnapshotRepository(postgres),
		storage.NewCredentialRepository(postgres),
		brokerageClient,
		credentialVault,
		storage.NewCacheService(redis, cfg.Brokerage.CacheTTL),
		cfg.Snapshot.SweepConcurrency,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := snapshotService.SweepAll(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Snapshot sweep failed")
	}

	logger.WithFields(map[string]interface{}{
		"total":     result.Total,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Snapshot sweep finished")

	if result.Failed > 0 {
		os.Exit(1)
	}
}
