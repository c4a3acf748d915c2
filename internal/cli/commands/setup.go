package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/answerdesk/internal/blob"
	"github.com/leapstack-labs/answerdesk/internal/cli/config"
	"github.com/leapstack-labs/answerdesk/internal/inflight"
	"github.com/leapstack-labs/answerdesk/internal/qa"
	"github.com/leapstack-labs/answerdesk/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Store   *state.SQLiteStore
	Blobs   blob.Store
	Service *qa.Service
	Guard   inflight.Guard
}

// NewCommandContext opens the database, attachment storage and in-flight
// guard. Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := openBlobStore(cmd.Context(), cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	guard, closeGuard := openGuard(cfg, logger)

	cleanup := func() {
		closeGuard()
		_ = store.Close()
	}

	svc := qa.NewService(store, blobs, logger, qa.Options{
		MaxFileSize: cfg.GetStorageConfig().MaxFileSize,
	})

	return &CommandContext{
		Cfg:     cfg,
		Logger:  logger,
		Store:   store,
		Blobs:   blobs,
		Service: svc,
		Guard:   guard,
	}, cleanup, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		Database:  getEnvOrDefault(config.EnvPrefix+"DATABASE", config.DefaultDatabase),
		LogLevel:  getEnvOrDefault(config.EnvPrefix+"LOG_LEVEL", config.DefaultLogLevel),
		LogFormat: getEnvOrDefault(config.EnvPrefix+"LOG_FORMAT", config.DefaultLogFormat),
		Verbose:   os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// openStore opens the database and brings its schema up to date.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	if cfg.Database != ":memory:" {
		if dir := filepath.Dir(cfg.Database); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.Database); err != nil {
		return nil, err
	}
	if err := store.InitSchema(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// openBlobStore opens the configured attachment storage.
func openBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	st := cfg.GetStorageConfig()
	switch st.Backend {
	case config.StorageS3:
		s3 := st.S3
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Region:     s3.Region,
			Bucket:     s3.Bucket,
			Endpoint:   s3.Endpoint,
			AccessKey:  s3.AccessKey,
			SecretKey:  s3.SecretKey,
			PublicBase: s3.PublicBase,
			PresignTTL: s3.PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 storage: %w", err)
		}
		return store, nil
	default:
		store, err := blob.NewLocalStore(st.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open local storage: %w", err)
		}
		return store, nil
	}
}

// openGuard returns the in-flight guard: shared through Redis when an
// address is configured, in process otherwise.
func openGuard(cfg *config.Config, logger *slog.Logger) (inflight.Guard, func()) {
	ic := cfg.GetInflightConfig()
	if ic.RedisAddr == "" {
		return inflight.NewMemoryGuard(), func() {}
	}
	guard := inflight.NewRedisGuard(ic.RedisAddr, ic.TTL, logger)
	return guard, func() { _ = guard.Close() }
}
