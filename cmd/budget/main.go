package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	res := cli.OpenBackend(ctx, logger, backend.NewFactory(logger.Logger), cfg)
	defer cli.CloseBackend(logger, res)

	collaboratorCache, cacheManager := cli.CollaboratorCache(cfg, logger)
	defer cacheManager.Stop()

	store := res.Store
	publisher := res.Publisher()
	resolver := services.NewCollaboratorResolver(store, collaboratorCache)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Credits:        services.NewCreditService(store, resolver, publisher, time.Now),
		Ledger:         services.NewLedgerService(store, resolver, publisher, time.Now),
		Collaborations: services.NewCollaborationService(store, resolver, publisher),
		Dashboards:     services.NewDashboardService(store, resolver, time.Now),
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Ready:              store.Ping,
		CacheEntries:       collaboratorCache.Size,
	})

	// Graceful shutdown handling
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting budget server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", res.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
		<-done
		cacheManager.Stop()
		cli.CloseBackend(logger, res)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
