// Command tracker-audit consumes the tracker's activity feed and records each
// event in a SQLite audit trail.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.ActivityFeedEnabled() {
		logger.Error("AMQP_URL is required for the audit worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// Initialize SQLite repository holding the audit trail
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer amqpClient.Close()

	auditWorker := worker.NewAuditWorker(sqliteRepo, logger)

	caches := cache.NewManager(logger.WithComponent(log.ComponentWorker))
	caches.Register("recent_events", auditWorker.RecentEvents())
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := auditWorker.StartupReport(ctx, 10); err != nil {
		// Don't exit - continue with normal operation
		logger.Error("Failed to read audit trail", log.FieldError, err)
	}

	logger.Info("Starting tracker audit worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"db", cfg.SQLiteDBPath)
	if err := amqpClient.ConsumeActivity(ctx, auditWorker.HandleActivityMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
