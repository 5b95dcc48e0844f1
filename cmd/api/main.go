package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/migrate"
	"storefront/internal/service/account"
	"storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	"storefront/internal/service/checkout"
	"storefront/internal/service/reconcile"
	"storefront/internal/storage"
	"storefront/internal/tracing"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	tracer, err := tracing.Setup("storefront", cfg.TraceExporter, os.Stdout, logger.Named("tracing"))
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeStore()

	publisher := openPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close publisher", zap.Error(err))
		}
	}()

	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger.Named("backend"),
	})

	cartService := cartsvc.New(store, logger.Named("cart"))
	registry := checkout.NewRegistry(checkout.Deps{
		Store:     store,
		Cart:      cartService,
		Gateway:   checkout.BackendGateway(client, store),
		Publisher: publisher,
		Logger:    logger.Named("checkout"),
		Config: checkout.Config{
			TransferDelay:      cfg.TransferDelay,
			TransferClearDelay: cfg.TransferClearDelay,
			PaymentTimeout:     cfg.PaymentTimeout,
			PendingOrderTTL:    cfg.PendingOrderTTL,
		},
	})
	reconciler := reconcile.New(
		store,
		cartService,
		reconcile.BackendOrders(client, store),
		publisher,
		reconcile.Config{PendingOrderTTL: cfg.PendingOrderTTL},
		logger.Named("reconcile"),
	)

	srv, err := httpserver.New(cfg.HTTPAddr, logger.Named("http"), httpserver.Deps{
		Cart:              cartService,
		Checkout:          registry,
		Reconcile:         reconciler,
		Account:           account.New(client, store, logger.Named("account")),
		Addresses:         address.New(client, store, logger.Named("address")),
		Backend:           client,
		Store:             store,
		CORSOrigins:       cfg.CORSOrigins,
		PaymentRatePerMin: cfg.PaymentRatePerMin,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
	_ = tracer.Shutdown(ctx)
}

// openStore returns the session store named by STORAGE_DRIVER and a func
// releasing its connections.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case "memory":
		logger.Warn("using in-memory session storage; state is lost on restart")
		return storage.NewMemory(), func() {}, nil
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return nil, nil, err
		}
		if err := migrate.Apply(ctx, pool, logger.Named("migrate")); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return storage.NewPostgres(pool, logger.Named("storage")), pool.Close, nil
	case "redis":
		client, err := db.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedis(client), func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func openPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLog(logger.Named("events"))
	}
	return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("events"))
}
