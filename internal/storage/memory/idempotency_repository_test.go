package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func TestIdempotencyCreateProcessingAndGet(t *testing.T) {
	repo := NewIdempotencyRepository()

	record, err := repo.CreateProcessing("key-1", "hash-1", time.Time{})
	if err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("unexpected status: %s", record.Status)
	}

	got, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RequestHash != "hash-1" {
		t.Fatalf("unexpected hash: %s", got.RequestHash)
	}
}

func TestIdempotencyDuplicateKey(t *testing.T) {
	repo := NewIdempotencyRepository()

	if _, err := repo.CreateProcessing("key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing: %v", err)
	}

	// Тот же ключ с тем же hash — сигнал о повторе запроса.
	if _, err := repo.CreateProcessing("key-1", "hash-1", time.Time{}); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}

	// Тот же ключ с другим hash — конфликт использования ключа.
	if _, err := repo.CreateProcessing("key-1", "hash-2", time.Time{}); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}

func TestIdempotencyMarkDoneStoresResponse(t *testing.T) {
	repo := NewIdempotencyRepository()

	if _, err := repo.CreateProcessing("key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing: %v", err)
	}
	if err := repo.MarkDone("key-1", []byte(`{"order_id":"order-1"}`), 201); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	record, err := repo.Get("key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != domain.IdempotencyStatusDone || record.HTTPStatus != 201 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if string(record.ResponseBody) != `{"order_id":"order-1"}` {
		t.Fatalf("unexpected body: %s", record.ResponseBody)
	}
}

func TestIdempotencyDeleteExpired(t *testing.T) {
	repo := NewIdempotencyRepository()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing("expired", "hash-1", past); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if _, err := repo.CreateProcessing("alive", "hash-2", future); err != nil {
		t.Fatalf("create alive: %v", err)
	}

	deleted, err := repo.DeleteExpired(time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	if _, err := repo.Get("expired"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected not found for expired key, got %v", err)
	}
	if _, err := repo.Get("alive"); err != nil {
		t.Fatalf("alive key must remain: %v", err)
	}
}
