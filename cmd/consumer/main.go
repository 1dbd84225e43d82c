package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/focusforge/internal/app"
	"example.com/focusforge/internal/config"
	"example.com/focusforge/internal/consumer"
	"example.com/focusforge/internal/events"
	httptransport "example.com/focusforge/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log).With(slog.String("component", "consumer"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := app.OpenPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	var wg sync.WaitGroup
	for _, topic := range []string{events.ActivityRecordedTopic} {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.Brokers(),
			GroupID:         cfg.Kafka.GroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  cfg.Kafka.CommitInterval,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, handler,
			consumer.WithLogger(logger.With(slog.String("topic", topic))),
			consumer.WithFetchBackoff(cfg.Kafka.FetchBackoff),
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer reader.Close()

			logger.Info("consumer started", slog.String("topic", topic), slog.String("group", cfg.Kafka.GroupID))
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped with error", slog.String("topic", topic), slog.Any("error", err))
			}
		}()
	}

	opsPath := ""
	if cfg.Metrics.Enabled {
		opsPath = cfg.Metrics.Path
	}
	server := httptransport.NewServer(cfg.Server, httptransport.OpsHandler(opsPath))
	serveErr := httptransport.Run(ctx, server, cfg.Server.ShutdownTimeout, logger)

	stop()
	wg.Wait()
	logger.Info("consumer shut down")
	return serveErr
}
