package domain

import (
	"encoding/json"
	"time"
)

// AuditEntry — запись compliance-журнала. Записи никогда не изменяются
// и не удаляются.
type AuditEntry struct {
	ID         string
	Entity     string // имя таблицы/сущности: orders, products, returns
	Operation  string // insert, update, repair
	PrimaryKey string
	OldValues  json.RawMessage
	NewValues  json.RawMessage
	Actor      string
	CreatedAt  time.Time
}

// Validate проверяет минимальную корректность записи аудита.
func (e *AuditEntry) Validate() []error {
	var errs []error

	if e.Entity == "" {
		errs = append(errs, ErrAuditEntityRequired)
	}
	if e.Operation == "" {
		errs = append(errs, ErrAuditOperationRequired)
	}
	if e.PrimaryKey == "" {
		errs = append(errs, ErrAuditPrimaryKeyRequired)
	}

	return errs
}
