package audit

import (
	"context"
	"testing"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

func TestRecordInsertAppendsEntry(t *testing.T) {
	store := memory.NewStore()
	trail := NewWithoutMetrics(nil, "test-actor")

	err := store.WithinTx(context.Background(), func(tx domain.Tx) error {
		return trail.RecordInsert(tx, "orders", "order-1", map[string]string{"status": "pending"})
	})
	if err != nil {
		t.Fatalf("record insert: %v", err)
	}

	_ = store.WithinTx(context.Background(), func(tx domain.Tx) error {
		entries, err := tx.Audit().List("orders", 10)
		if err != nil {
			return err
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		entry := entries[0]
		if entry.Operation != OperationInsert || entry.PrimaryKey != "order-1" || entry.Actor != "test-actor" {
			t.Fatalf("unexpected entry: %+v", entry)
		}
		if entry.OldValues != nil {
			t.Fatalf("insert must not carry old values: %s", entry.OldValues)
		}
		if string(entry.NewValues) != `{"status":"pending"}` {
			t.Fatalf("unexpected new values: %s", entry.NewValues)
		}
		return nil
	})
}

func TestRecordUpdateKeepsBothStates(t *testing.T) {
	store := memory.NewStore()
	trail := NewWithoutMetrics(nil, "")

	err := store.WithinTx(context.Background(), func(tx domain.Tx) error {
		return trail.RecordUpdate(tx, "orders", "order-1",
			map[string]string{"status": "pending"},
			map[string]string{"status": "processing"})
	})
	if err != nil {
		t.Fatalf("record update: %v", err)
	}

	_ = store.WithinTx(context.Background(), func(tx domain.Tx) error {
		entries, err := tx.Audit().List("orders", 10)
		if err != nil {
			return err
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if string(entries[0].OldValues) != `{"status":"pending"}` {
			t.Fatalf("unexpected old values: %s", entries[0].OldValues)
		}
		if string(entries[0].NewValues) != `{"status":"processing"}` {
			t.Fatalf("unexpected new values: %s", entries[0].NewValues)
		}
		return nil
	})
}

func TestRecordRejectsMissingEntity(t *testing.T) {
	store := memory.NewStore()
	trail := NewWithoutMetrics(nil, "")

	err := store.WithinTx(context.Background(), func(tx domain.Tx) error {
		return trail.RecordInsert(tx, "", "order-1", nil)
	})
	if err != domain.ErrAuditEntityRequired {
		t.Fatalf("expected entity required, got %v", err)
	}
}
