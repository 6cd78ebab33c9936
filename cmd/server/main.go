// Package main is the entry point for the todo list server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vkuznetsov/todolist/internal/auth"
	"github.com/vkuznetsov/todolist/internal/config"
	"github.com/vkuznetsov/todolist/internal/engine"
	"github.com/vkuznetsov/todolist/internal/server"
	"github.com/vkuznetsov/todolist/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := initLogger(cfg.LogLevel)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("configuration loaded",
		zap.Int("server_port", cfg.ServerPort),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("metrics_enabled", cfg.MetricsEnabled),
		zap.String("auth_mode", cfg.AuthMode),
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("tls_enabled", cfg.TLSEnabled),
	)

	authenticator, err := createAuthenticator(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating authenticator: %w", err)
	}

	todoStore, err := createStore(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer func() {
		if closer, ok := todoStore.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("failed to close store", zap.Error(err))
			}
		}
	}()

	// One engine per authenticated owner, created on first use.
	sessions := engine.NewRegistry(todoStore, logger)

	srv := server.New(cfg, logger, sessions, authenticator)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger builds a JSON production logger at the given level.
// Unknown levels fall back to info rather than failing startup.
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapConfig.OutputPaths = []string{"stdout"}
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.MessageKey = "message"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.EncodeDuration = zapcore.SecondsDurationEncoder

	return zapConfig.Build()
}

// createStore creates the persistence store selected by the config.
func createStore(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Info("store backend: memory")
		return store.NewMemoryStore(), nil
	case "sqlite":
		logger.Info("store backend: sqlite", zap.String("path", cfg.SQLitePath))
		return store.NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		logger.Info("store backend: postgres")
		return store.NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
}

// createAuthenticator creates an authenticator based on the config
// auth mode. Mode "none" returns a nil authenticator, which runs the
// server in open single-owner mode under cfg.LocalOwnerID.
func createAuthenticator(
	cfg *config.Config,
	logger *zap.Logger,
) (auth.Authenticator, error) {
	switch cfg.AuthMode {
	case "none", "":
		logger.Info("authentication disabled",
			zap.String("local_owner_id", cfg.LocalOwnerID),
		)
		return nil, nil
	case "mtls":
		logger.Info("authentication mode: mTLS")
		return auth.NewMTLSAuthenticator(), nil
	case "basic":
		logger.Info("authentication mode: basic auth")
		return auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
	case "apikey":
		logger.Info("authentication mode: API key")
		return auth.NewAPIKeyAuthenticator(cfg.APIKeys)
	case "multi":
		logger.Info("authentication mode: multi")
		return createMultiAuthenticator(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.AuthMode)
	}
}

// createMultiAuthenticator assembles a multi-method authenticator from
// whichever auth configurations are present.
func createMultiAuthenticator(
	cfg *config.Config,
	logger *zap.Logger,
) (auth.Authenticator, error) {
	var authenticators []auth.Authenticator

	if cfg.TLSEnabled && cfg.TLSClientAuth == "require" {
		authenticators = append(authenticators, auth.NewMTLSAuthenticator())
		logger.Info("multi-auth: mTLS enabled")
	}

	if cfg.BasicAuthUsers != "" {
		ba, err := auth.NewBasicAuthenticator(cfg.BasicAuthUsers)
		if err != nil {
			return nil, fmt.Errorf("creating basic authenticator: %w", err)
		}
		authenticators = append(authenticators, ba)
		logger.Info("multi-auth: basic auth enabled")
	}

	if cfg.APIKeys != "" {
		ak, err := auth.NewAPIKeyAuthenticator(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("creating API key authenticator: %w", err)
		}
		authenticators = append(authenticators, ak)
		logger.Info("multi-auth: API key auth enabled")
	}

	if len(authenticators) == 0 {
		return nil, fmt.Errorf("multi auth mode requires at least one authenticator")
	}

	return auth.NewMultiAuthenticator(authenticators...), nil
}
