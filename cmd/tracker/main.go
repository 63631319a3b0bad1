package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
	"expensetracker/internal/tracker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	var opts []remote.Option
	if cfg.RemoteTimeout > 0 {
		opts = append(opts, remote.WithTimeout(cfg.RemoteTimeout))
	}
	store, err := remote.New(cfg.RemoteBaseURL, opts...)
	if err != nil {
		logger.Error("Failed to create remote client",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration,
			"remote", cfg.RemoteBaseURL)
		os.Exit(1)
	}

	trackerOpts := tracker.Options{
		Logger:             logger,
		SerializeMutations: cfg.SerializeMutations,
		ResetConcurrency:   cfg.ResetConcurrency,
	}

	// Activity feed is optional
	var amqpClient *amqp.Client
	if cfg.ActivityFeedEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		trackerOpts.Publisher = amqpClient
		logger.Info("Activity feed enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Activity feed disabled - no AMQP_URL provided")
	}

	trk := tracker.New(store, tracker.NewState(cfg.Currency), trackerOpts)

	srv, err := apphttp.NewServer(":"+cfg.Port, trk, apphttp.Options{
		Logger: logger,
		Ready: func(ctx context.Context) error {
			_, err := store.GetBalance(ctx)
			return err
		},
	})
	if err != nil {
		logger.Error("Failed to create HTTP server",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	logger.Info("Starting tracker server",
		"port", cfg.Port,
		"remote", cfg.RemoteBaseURL,
		"serialize_mutations", cfg.SerializeMutations)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
