package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска сервиса резолюции предложений.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string
	KafkaTopic   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	ReconcileInterval    time.Duration
	ReconcileBatchSize   int
	ReconcileReopenGrace time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:             ":8080",
		MetricsAddr:          ":9090",
		StorageDriver:        StorageDriverMemory,
		PostgresAutoMigrate:  true,
		OutboxPollInterval:   time.Second,
		OutboxBatchSize:      100,
		OutboxMaxAttempts:    3,
		OutboxRetryDelay:     50 * time.Millisecond,
		ReconcileInterval:    30 * time.Second,
		ReconcileBatchSize:   100,
		ReconcileReopenGrace: 2 * time.Minute,
	}
}

// ConfigFromEnv читает настройки из окружения поверх значений по умолчанию.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("MARKET_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("MARKET_METRICS_ADDR", cfg.MetricsAddr)

	cfg.PostgresDSN = envString("MARKET_PG_DSN", cfg.PostgresDSN)
	if cfg.PostgresDSN != "" {
		cfg.StorageDriver = StorageDriverPostgres
	}
	if driver := envString("MARKET_STORAGE_DRIVER", ""); driver != "" {
		cfg.StorageDriver = StorageDriver(driver)
	}
	cfg.PostgresAutoMigrate = envBool("MARKET_PG_AUTO_MIGRATE", cfg.PostgresAutoMigrate)

	cfg.KafkaBrokers = envString("MARKET_KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envString("MARKET_KAFKA_TOPIC", cfg.KafkaTopic)

	cfg.OutboxPollInterval = envDuration("MARKET_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("MARKET_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("MARKET_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("MARKET_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.ReconcileInterval = envDuration("MARKET_RECONCILE_INTERVAL", cfg.ReconcileInterval)
	cfg.ReconcileBatchSize = envInt("MARKET_RECONCILE_BATCH_SIZE", cfg.ReconcileBatchSize)
	cfg.ReconcileReopenGrace = envDuration("MARKET_RECONCILE_REOPEN_GRACE", cfg.ReconcileReopenGrace)

	return cfg
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
