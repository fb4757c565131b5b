package postgres

import (
	"database/sql"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// txAudit — append-only compliance-журнал.
type txAudit struct {
	t *pgTx
}

func (r *txAudit) Append(entry domain.AuditEntry) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO audit_log (
			id, entity, operation, primary_key, old_values, new_values, actor, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		entry.ID, entry.Entity, entry.Operation, entry.PrimaryKey,
		nullableJSON(entry.OldValues), nullableJSON(entry.NewValues),
		entry.Actor, entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return persistenceErr("append audit entry", err)
	}
	return nil
}

func (r *txAudit) List(entity string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, entity, operation, primary_key, old_values, new_values, actor, created_at
		FROM audit_log
	`
	var (
		rows *sql.Rows
		err  error
	)
	if entity != "" {
		rows, err = r.t.tx.QueryContext(r.t.ctx, query+`
			WHERE entity = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, entity, limit)
	} else {
		rows, err = r.t.tx.QueryContext(r.t.ctx, query+`
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, persistenceErr("list audit entries", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry     domain.AuditEntry
			oldValues []byte
			newValues []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.Entity, &entry.Operation, &entry.PrimaryKey,
			&oldValues, &newValues, &entry.Actor, &entry.CreatedAt,
		); err != nil {
			return nil, persistenceErr("scan audit entry", err)
		}
		if len(oldValues) > 0 {
			entry.OldValues = append([]byte(nil), oldValues...)
		}
		if len(newValues) > 0 {
			entry.NewValues = append([]byte(nil), newValues...)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate audit entries", err)
	}
	return entries, nil
}

// nullableJSON отдаёт NULL вместо пустого значения: JSONB-колонка
// не принимает пустую строку.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var _ domain.AuditStore = (*txAudit)(nil)
