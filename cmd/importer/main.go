package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/importer"
	"storefront/internal/logging"
)

func main() {
	var filePath string
	flag.StringVar(&filePath, "file", "", "Path to product CSV (name,category,price,image,description,specs,inStock)")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("importer")
	defer func() { _ = logger.Sync() }()

	if cfg.AdminToken == "" {
		logger.Fatal("ADMIN_TOKEN is required to create products")
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	}).As(backend.StaticToken(cfg.AdminToken))

	imp := importer.NewCSVImporter(f, client.Products(), logger)

	start := time.Now()
	count, err := imp.Run(context.Background())
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	fmt.Printf("Imported %d products into %s in %s\n", count, cfg.BackendURL, time.Since(start).Truncate(time.Millisecond))
}
