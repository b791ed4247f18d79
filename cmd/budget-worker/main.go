package main

import (
	"context"
	"errors"
	"time"

	"budget/internal/amqp"
	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/services"
	"budget/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting budget-worker")

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	factory := backend.NewFactory(logger.Logger)
	res := cli.OpenBackend(ctx, logger, factory, cfg)
	defer cli.CloseBackend(logger, res)

	writer := cli.OpenReportWriter(ctx, logger, factory, cfg)
	if cfg.SheetsEnabled() {
		logger.Info("Google Sheets report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - reports kept in memory")
	}

	collaboratorCache, cacheManager := cli.CollaboratorCache(cfg, logger)
	defer cacheManager.Stop()

	resolver := services.NewCollaboratorResolver(res.Store, collaboratorCache)
	dashboards := services.NewDashboardService(res.Store, resolver, time.Now)
	reportWorker := worker.NewReportWorker(dashboards, resolver, res.Store, writer, cfg.ReportConcurrency, nil)

	// On startup, export every user once so the sheet reflects the current state
	logger.Info("Performing startup export")
	if err := reportWorker.ExportAll(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
		// Don't exit - continue with normal operation
	}

	if res.AMQP != nil {
		go func() {
			err := res.AMQP.Consume(ctx, func(ctx context.Context, msg *amqp.ChangeMessage) error {
				// The API process owns the collaboration writes; drop what this
				// process cached about the affected users.
				resolver.Invalidate(msg.AffectedUsers()...)
				return reportWorker.HandleChange(ctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
				cancel()
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	scheduler := worker.NewScheduler(reportWorker, cfg.ReportSchedule, logger.Logger)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start report scheduler", "error", err)
		cancel()
		return
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown error", "error", err)
	}

	exported, failed := reportWorker.Stats()
	logger.Info("budget-worker stopped", "reports_exported", exported, "reports_failed", failed)
}
