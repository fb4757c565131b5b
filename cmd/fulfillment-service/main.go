package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/app"
)

// Переменные окружения сервиса.
const (
	envHTTPAddr                    = "FULFILLMENT_HTTP_ADDR"
	envMetricsAddr                 = "FULFILLMENT_METRICS_ADDR"
	envStorageDriver               = "FULFILLMENT_STORAGE_DRIVER"
	envPostgresDSN                 = "FULFILLMENT_POSTGRES_DSN"
	envPostgresAutoMigrate         = "FULFILLMENT_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers                = "KAFKA_BROKERS"
	envOutboxPollInterval          = "FULFILLMENT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "FULFILLMENT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "FULFILLMENT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "FULFILLMENT_OUTBOX_RETRY_DELAY"
	envIdempotencyCleanupInterval  = "FULFILLMENT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "FULFILLMENT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

// envLookup абстрагирует os.LookupEnv для тестов.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv накладывает переменные окружения на настройки по
// умолчанию. Невалидные значения не прерывают запуск: возвращаются
// warnings, а поле остаётся со значением по умолчанию.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value, reason string) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %s", key, value, reason))
	}

	if v, ok := lookup(envHTTPAddr); ok {
		cfg.HTTPAddr = strings.TrimSpace(v)
	}
	if v, ok := lookup(envMetricsAddr); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}

	driverSet := false
	if v, ok := lookup(envStorageDriver); ok {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
		driverSet = true
	}
	if v, ok := lookup(envPostgresDSN); ok {
		cfg.PostgresDSN = strings.TrimSpace(v)
		// DSN без явного драйвера означает postgres.
		if !driverSet && cfg.PostgresDSN != "" {
			cfg.StorageDriver = app.StorageDriverPostgres
		}
	}
	if v, ok := lookup(envPostgresAutoMigrate); ok {
		parsed, err := parseBool(v)
		if err != nil {
			warn(envPostgresAutoMigrate, v, err.Error())
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = strings.TrimSpace(v)
	}

	if v, ok := lookup(envOutboxPollInterval); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxPollInterval, v, err.Error())
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if v, ok := lookup(envOutboxBatchSize); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxBatchSize, v, err.Error())
		} else {
			cfg.OutboxBatchSize = parsed
		}
	}
	if v, ok := lookup(envOutboxMaxAttempts); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxMaxAttempts, v, err.Error())
		} else {
			cfg.OutboxMaxAttempts = parsed
		}
	}
	if v, ok := lookup(envOutboxRetryDelay); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d >= 0 }, "must be >= 0")
		if err != nil {
			warn(envOutboxRetryDelay, v, err.Error())
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}

	if v, ok := lookup(envIdempotencyCleanupInterval); ok {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupInterval, v, err.Error())
		} else {
			cfg.IdempotencyCleanupInterval = parsed
		}
	}
	if v, ok := lookup(envIdempotencyCleanupBatchSize); ok {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupBatchSize, v, err.Error())
		} else {
			cfg.IdempotencyCleanupBatchSize = parsed
		}
	}

	return cfg, warnings
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, errors.New("invalid boolean value")
	}
}

func parseInt(value string, valid func(int) bool, reason string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.New("invalid integer value")
	}
	if !valid(parsed) {
		return 0, errors.New(reason)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, reason string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.New("invalid duration value")
	}
	if !valid(parsed) {
		return 0, errors.New(reason)
	}
	return parsed, nil
}

func main() {
	setupLogger()

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем fulfillment-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("fulfillment-service остановлен")
}
