package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/seed"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("seed")
	defer func() { _ = logger.Sync() }()

	if cfg.AdminToken == "" {
		logger.Fatal("ADMIN_TOKEN is required to create products")
	}

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	}).As(backend.StaticToken(cfg.AdminToken))

	created, err := seed.Apply(context.Background(), client.Products(), logger)
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.Int("created", created))
}
