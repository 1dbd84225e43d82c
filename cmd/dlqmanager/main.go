package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/focusforge/internal/app"
	"example.com/focusforge/internal/config"
	"example.com/focusforge/internal/outbox"
	httptransport "example.com/focusforge/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("dlq manager stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log).With(slog.String("component", "dlq"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQ.MaxRetries, cfg.DLQ.BaseDelay)

	opsPath := ""
	if cfg.Metrics.Enabled {
		opsPath = cfg.Metrics.Path
	}
	server := httptransport.NewServer(cfg.Server, httptransport.OpsHandler(opsPath))
	serveErr := make(chan error, 1)
	go func() { serveErr <- httptransport.Run(ctx, server, cfg.Server.ShutdownTimeout, logger) }()

	logger.Info("dlq manager started",
		slog.Duration("interval", cfg.DLQ.PollInterval),
		slog.Int("max_retries", cfg.DLQ.MaxRetries),
	)

	ticker := time.NewTicker(cfg.DLQ.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
			logger.Info("dlq manager shutting down")
			if err := <-serveErr; err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-ticker.C:
			requeued, err := manager.RunOnce(ctx, cfg.DLQ.BatchSize)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dlq pass failed", slog.Any("error", err))
			} else if requeued > 0 {
				logger.Info("dlq entries requeued", slog.Int("count", requeued))
			}
			if err := manager.UpdateBacklog(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("dlq backlog refresh failed", slog.Any("error", err))
			}
		}
	}
}
