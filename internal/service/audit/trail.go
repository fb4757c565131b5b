// Package audit пишет compliance-журнал изменений. Записи создаются
// в транзакции владеющей операции и никогда не изменяются.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// Операции журнала аудита.
const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationRepair = "repair"
)

// Trail записывает события аудита внутри чужой транзакции.
type Trail struct {
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
	actor   string
}

// New создаёт журнал аудита с метриками.
func New(logger *log.Entry, actor string) *Trail {
	trail := NewWithoutMetrics(logger, actor)
	trail.metrics = metrics.NewFulfillmentMetrics()
	return trail
}

// NewWithoutMetrics создаёт журнал аудита без метрик (для тестов).
func NewWithoutMetrics(logger *log.Entry, actor string) *Trail {
	if logger == nil {
		logger = log.WithField("component", "audit-trail")
	}
	if actor == "" {
		actor = "fulfillment-service"
	}
	return &Trail{logger: logger, actor: actor}
}

// RecordInsert фиксирует создание сущности.
func (t *Trail) RecordInsert(tx domain.Tx, entity, primaryKey string, newValues any) error {
	return t.record(tx, OperationInsert, entity, primaryKey, nil, newValues)
}

// RecordUpdate фиксирует изменение сущности со старым и новым состоянием.
func (t *Trail) RecordUpdate(tx domain.Tx, entity, primaryKey string, oldValues, newValues any) error {
	return t.record(tx, OperationUpdate, entity, primaryKey, oldValues, newValues)
}

// RecordRepair фиксирует автоматическое исправление integrity-проверкой.
func (t *Trail) RecordRepair(tx domain.Tx, entity, primaryKey string, oldValues, newValues any) error {
	return t.record(tx, OperationRepair, entity, primaryKey, oldValues, newValues)
}

func (t *Trail) record(tx domain.Tx, operation, entity, primaryKey string, oldValues, newValues any) error {
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		Entity:     entity,
		Operation:  operation,
		PrimaryKey: primaryKey,
		Actor:      t.actor,
		CreatedAt:  time.Now().UTC(),
	}

	var err error
	if entry.OldValues, err = marshalValues(oldValues); err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	if entry.NewValues, err = marshalValues(newValues); err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}

	if errs := entry.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if err := tx.Audit().Append(entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}

	if t.metrics != nil {
		t.metrics.RecordAuditEntry()
	}
	t.logger.WithFields(log.Fields{
		"entity":      entity,
		"operation":   operation,
		"primary_key": primaryKey,
	}).Debug("audit entry recorded")

	return nil
}

func marshalValues(values any) (json.RawMessage, error) {
	if values == nil {
		return nil, nil
	}
	if raw, ok := values.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(values)
}
