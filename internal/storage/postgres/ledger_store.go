package postgres

import (
	"database/sql"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// txLedger — append-only журнал движений остатков. Записи не
// обновляются и не удаляются.
type txLedger struct {
	t *pgTx
}

const ledgerColumns = `id, product_id, type, quantity_delta,
	previous_stock, new_stock, reference_id, reference_type, created_at`

func (r *txLedger) Append(entry domain.InventoryTransaction) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO inventory_transactions (`+ledgerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		entry.ID, entry.ProductID, string(entry.Type), entry.QuantityDelta,
		entry.PreviousStock, entry.NewStock, entry.ReferenceID, entry.ReferenceType,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return persistenceErr("append ledger entry", err)
	}
	return nil
}

func (r *txLedger) ListByProduct(productID string, limit int) ([]domain.InventoryTransaction, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM inventory_transactions
		WHERE product_id = $1
		ORDER BY created_at, id
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.t.tx.QueryContext(r.t.ctx, query+" LIMIT $2", productID, limit)
	} else {
		rows, err = r.t.tx.QueryContext(r.t.ctx, query, productID)
	}
	if err != nil {
		return nil, persistenceErr("list ledger entries", err)
	}
	defer rows.Close()

	return scanLedgerRows(rows)
}

func (r *txLedger) List() ([]domain.InventoryTransaction, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT `+ledgerColumns+`
		FROM inventory_transactions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, persistenceErr("list ledger entries", err)
	}
	defer rows.Close()

	return scanLedgerRows(rows)
}

func scanLedgerRows(rows *sql.Rows) ([]domain.InventoryTransaction, error) {
	entries := make([]domain.InventoryTransaction, 0)
	for rows.Next() {
		var (
			entry domain.InventoryTransaction
			typ   string
		)
		if err := rows.Scan(
			&entry.ID, &entry.ProductID, &typ, &entry.QuantityDelta,
			&entry.PreviousStock, &entry.NewStock, &entry.ReferenceID, &entry.ReferenceType,
			&entry.CreatedAt,
		); err != nil {
			return nil, persistenceErr("scan ledger entry", err)
		}
		entry.Type = domain.TransactionType(typ)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate ledger entries", err)
	}
	return entries, nil
}

var _ domain.LedgerStore = (*txLedger)(nil)
