package app

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %s, want :8080", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %s, want :9090", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("StorageDriver = %s, want memory", cfg.StorageDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("PostgresAutoMigrate = false, want true")
	}
	if cfg.KafkaBrokers != "" {
		t.Errorf("KafkaBrokers = %s, want empty", cfg.KafkaBrokers)
	}
	if cfg.OutboxPollInterval != 5*time.Second {
		t.Errorf("OutboxPollInterval = %s, want 5s", cfg.OutboxPollInterval)
	}
	if cfg.OutboxBatchSize != 100 {
		t.Errorf("OutboxBatchSize = %d, want 100", cfg.OutboxBatchSize)
	}
	if cfg.OutboxMaxAttempts != 5 {
		t.Errorf("OutboxMaxAttempts = %d, want 5", cfg.OutboxMaxAttempts)
	}
	if cfg.IdempotencyCleanupInterval != 10*time.Minute {
		t.Errorf("IdempotencyCleanupInterval = %s, want 10m", cfg.IdempotencyCleanupInterval)
	}
}
