package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"example.com/focusforge/internal/aggregate"
	"example.com/focusforge/internal/api"
	"example.com/focusforge/internal/app"
	"example.com/focusforge/internal/auth"
	"example.com/focusforge/internal/classify"
	"example.com/focusforge/internal/classify/huggingface"
	"example.com/focusforge/internal/config"
	"example.com/focusforge/internal/outbox"
	"example.com/focusforge/internal/persistence/memory"
	"example.com/focusforge/internal/persistence/postgres"
	"example.com/focusforge/internal/retry"
	httptransport "example.com/focusforge/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo aggregate.Repository
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		repo = memory.NewRepository()
		logger.Warn("using in-memory storage, data is lost on restart")
	default:
		pool, err := app.OpenPool(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo = postgres.NewRepository(pool)

		if cfg.Outbox.Enabled {
			producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers(), cfg.Kafka.WriteTimeout)
			defer producer.Close()

			dispatcher := outbox.NewDispatcher(pool, producer, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize,
				logger.With(slog.String("component", "outbox")))
			go dispatcher.Start(ctx)
			defer func() {
				stop()
				dispatcher.Wait()
			}()
		}
	}

	rules := classify.DefaultRules()
	if cfg.Classifier.RulesPath != "" {
		if rules, err = classify.LoadRules(cfg.Classifier.RulesPath); err != nil {
			return err
		}
	}
	hf := huggingface.NewClient(huggingface.Config{
		BaseURL: cfg.Classifier.BaseURL,
		Token:   cfg.Classifier.Token,
		Model:   cfg.Classifier.Model,
		Timeout: cfg.Classifier.Timeout,
	})
	classifier := classify.NewService(hf, &classify.FixedImageClassifier{Score: cfg.Classifier.ImageScore}, hf,
		classify.WithRules(rules),
		classify.WithRetryPolicy(retry.Policy{Attempts: cfg.Classifier.Attempts, Step: cfg.Classifier.RetryStep}),
		classify.WithLogger(logger.With(slog.String("component", "classify"))),
	)

	aggregator := aggregate.NewService(repo,
		aggregate.WithLocation(cfg.Aggregation.Location),
		aggregate.WithLogger(logger.With(slog.String("component", "aggregate"))),
	)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := api.NewRouter(api.NewHandler(classifier, aggregator, logger), api.RouterConfig{
		Auth:        auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer},
		CORSOrigin:  cfg.Server.CORSOrigin,
		MetricsPath: metricsPath,
		Logger:      logger,
	})

	server := httptransport.NewServer(cfg.Server, router)
	if err := httptransport.Run(ctx, server, cfg.Server.ShutdownTimeout, logger); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("api shut down")
	return nil
}
