package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
}

func TestLoadDefaultsFromEnv(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, StoragePostgres, cfg.Storage.Backend)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	require.Equal(t, 3, cfg.Classifier.Attempts)
	require.Equal(t, 2*time.Second, cfg.Classifier.RetryStep)
	require.InDelta(t, 0.9, cfg.Classifier.ImageScore, 1e-9)
	require.Equal(t, time.UTC, cfg.Aggregation.Location)
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STORAGE", "memory")
	t.Setenv("OUTBOX_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092 , ,kafka-2:9092")
	t.Setenv("AGGREGATION_TIMEZONE", "Europe/Berlin")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers())
	require.Equal(t, "Europe/Berlin", cfg.Aggregation.Location.String())
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "focusforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9090"
storage:
  backend: memory
outbox:
  enabled: false
classifier:
  model: "typeform/distilbert-base-uncased-mnli"
  rules_path: "/etc/focusforge/rules.yaml"
log:
  level: warn
  format: text
`), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, StorageMemory, cfg.Storage.Backend)
	require.Equal(t, "typeform/distilbert-base-uncased-mnli", cfg.Classifier.Model)
	require.Equal(t, "/etc/focusforge/rules.yaml", cfg.Classifier.RulesPath)
	require.Equal(t, "text", cfg.Log.Format)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		return Config{
			Server:      ServerConfig{ReadTimeout: time.Second, ShutdownTimeout: time.Second},
			Database:    DatabaseConfig{DSN: "postgres://localhost/focusforge"},
			Storage:     StorageConfig{Backend: StoragePostgres},
			Kafka:       KafkaConfig{BrokersRaw: "localhost:9092"},
			Outbox:      OutboxConfig{Enabled: true, PollInterval: time.Second, BatchSize: 10},
			DLQ:         DLQConfig{PollInterval: time.Second},
			Classifier:  ClassifierConfig{Timeout: time.Second, Attempts: 3, ImageScore: 0.9},
			Aggregation: AggregationConfig{Timezone: "UTC"},
			Log:         LogConfig{Level: "info"},
		}
	}

	valid := base()
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"unknown storage":      func(c *Config) { c.Storage.Backend = "sqlite" },
		"missing dsn":          func(c *Config) { c.Database.DSN = " " },
		"outbox without pg":    func(c *Config) { c.Storage.Backend = StorageMemory },
		"no brokers":           func(c *Config) { c.Kafka.BrokersRaw = " , " },
		"zero poll interval":   func(c *Config) { c.Outbox.PollInterval = 0 },
		"zero batch":           func(c *Config) { c.Outbox.BatchSize = 0 },
		"zero attempts":        func(c *Config) { c.Classifier.Attempts = 0 },
		"image score too high": func(c *Config) { c.Classifier.ImageScore = 1.5 },
		"unknown log level":    func(c *Config) { c.Log.Level = "verbose" },
		"bad timezone":         func(c *Config) { c.Aggregation.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
