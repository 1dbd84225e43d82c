package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks cross-field rules and resolves derived values. Load calls it.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required when storage is postgres")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q (got %q)", StorageMemory, StoragePostgres, c.Storage.Backend)
	}

	if c.Outbox.Enabled {
		if c.Storage.Backend != StoragePostgres {
			return errors.New("outbox requires postgres storage")
		}
		if len(c.Kafka.Brokers()) == 0 {
			return errors.New("kafka.brokers is required when the outbox is enabled")
		}
	}

	positive := map[string]time.Duration{
		"outbox.poll_interval":    c.Outbox.PollInterval,
		"dlq.poll_interval":       c.DLQ.PollInterval,
		"classifier.timeout":      c.Classifier.Timeout,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0 (got %s)", name, d)
		}
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox.batch_size must be > 0 (got %d)", c.Outbox.BatchSize)
	}
	if c.Classifier.Attempts <= 0 {
		return fmt.Errorf("classifier.attempts must be > 0 (got %d)", c.Classifier.Attempts)
	}
	if c.Classifier.ImageScore < 0 || c.Classifier.ImageScore > 1 {
		return fmt.Errorf("classifier.image_score must be within [0,1] (got %v)", c.Classifier.ImageScore)
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	loc, err := time.LoadLocation(c.Aggregation.Timezone)
	if err != nil {
		return fmt.Errorf("aggregation.timezone: %w", err)
	}
	c.Aggregation.Location = loc

	return nil
}
