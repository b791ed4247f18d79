// Package cli provides the startup steps shared by cmd/budget and
// cmd/budget-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budget/internal/backend"
	"budget/internal/cache"
	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/sheets"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Bootstrap loads .env and the configuration, installs the default logger
// for component and validates the configuration. It exits the process on an
// invalid configuration.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenBackend opens the configured store and optional AMQP connection.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, logger *log.Logger, factory backend.Factory, cfg *config.Config) *backend.BackendResult {
	res, err := openBackend(ctx, factory, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	return res
}

func openBackend(ctx context.Context, factory backend.Factory, cfg *config.Config) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return factory.CreateBackend(ctx, bcfg)
}

// OpenReportWriter returns the Sheets writer, or the in-memory one when no
// spreadsheet is configured. It exits the process on failure.
func OpenReportWriter(ctx context.Context, logger *log.Logger, factory backend.Factory, cfg *config.Config) sheets.ReportWriter {
	w, err := openReportWriter(ctx, factory, cfg)
	if err != nil {
		logger.Error("Failed to initialize report writer", "error", err)
		os.Exit(1)
	}
	return w
}

func openReportWriter(ctx context.Context, factory backend.Factory, cfg *config.Config) (sheets.ReportWriter, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return factory.CreateReportWriter(ctx, bcfg)
}

// CloseBackend runs the backend cleanup and logs a failure.
func CloseBackend(logger *log.Logger, res *backend.BackendResult) {
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup failed", "error", err)
	}
}

// CollaboratorCache builds the collaborator-set cache and a manager that
// evicts expired entries in the background. Stop the manager on shutdown.
func CollaboratorCache(cfg *config.Config, logger *log.Logger) (*cache.LRUCache[[]string], *cache.Manager) {
	c := cache.NewLRUCache[[]string](cfg.CollaboratorCacheSize, cfg.CollaboratorCacheTTL)
	m := cache.NewManager(logger.Logger)
	m.Register(c)
	m.StartCleanup(cfg.CacheCleanupInterval)
	return c, m
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// received signal is logged.
func SignalContext(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
