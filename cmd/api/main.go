package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"project-tracker-api/internal"
	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"
	"project-tracker-api/internal/migrate"
	"project-tracker-api/internal/repository"
	"project-tracker-api/internal/repository/memory"
	"project-tracker-api/internal/repository/postgres"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logger, flush, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer flush()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := internal.NewServer(cfg, store, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer srv.Close(context.Background())

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting project tracker api",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("auth", cfg.AuthEnabled),
		zap.String("jwt_issuer", cfg.JWTIssuer),
		zap.String("jwt_audience", cfg.JWTAudience),
		zap.Duration("jwt_expiry", cfg.JWTExpiry))

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DBDSN, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		if _, err := migrate.Apply(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
