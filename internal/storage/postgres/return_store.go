package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type txReturns struct {
	t *pgTx
}

const returnColumns = `id, order_id, product_id, customer_id,
	return_quantity, refund_amount, reason, status, restock,
	processed_at, created_at, updated_at`

func (r *txReturns) Create(ret domain.ProductReturn) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO product_returns (`+returnColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		ret.ID, ret.OrderID, ret.ProductID, ret.CustomerID,
		ret.ReturnQuantity, ret.RefundAmount, ret.Reason, string(ret.Status), ret.Restock,
		nullableTime(ret.ProcessedAt), ret.CreatedAt, ret.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return persistenceErr("insert return", err)
	}
	return nil
}

func (r *txReturns) Update(ret domain.ProductReturn) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE product_returns
		SET return_quantity = $2,
		    refund_amount = $3,
		    reason = $4,
		    status = $5,
		    restock = $6,
		    processed_at = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		ret.ID, ret.ReturnQuantity, ret.RefundAmount, ret.Reason,
		string(ret.Status), ret.Restock, nullableTime(ret.ProcessedAt), time.Now().UTC(),
	)
	if err != nil {
		return persistenceErr("update return", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("return rows affected", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *txReturns) Get(id string) (domain.ProductReturn, error) {
	var (
		ret         domain.ProductReturn
		status      string
		processedAt sql.NullTime
	)

	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT `+returnColumns+`
		FROM product_returns
		WHERE id = $1
	`, id).Scan(
		&ret.ID, &ret.OrderID, &ret.ProductID, &ret.CustomerID,
		&ret.ReturnQuantity, &ret.RefundAmount, &ret.Reason, &status, &ret.Restock,
		&processedAt, &ret.CreatedAt, &ret.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ProductReturn{}, domain.ErrNotFound
		}
		return domain.ProductReturn{}, persistenceErr("select return", err)
	}
	ret.Status = domain.ReturnStatus(status)
	if processedAt.Valid {
		ret.ProcessedAt = processedAt.Time
	}
	return ret, nil
}

func (r *txReturns) ListByOrder(orderID string) ([]domain.ProductReturn, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT `+returnColumns+`
		FROM product_returns
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, persistenceErr("list returns", err)
	}
	defer rows.Close()

	returns := make([]domain.ProductReturn, 0)
	for rows.Next() {
		var (
			ret         domain.ProductReturn
			status      string
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&ret.ID, &ret.OrderID, &ret.ProductID, &ret.CustomerID,
			&ret.ReturnQuantity, &ret.RefundAmount, &ret.Reason, &status, &ret.Restock,
			&processedAt, &ret.CreatedAt, &ret.UpdatedAt,
		); err != nil {
			return nil, persistenceErr("scan return row", err)
		}
		ret.Status = domain.ReturnStatus(status)
		if processedAt.Valid {
			ret.ProcessedAt = processedAt.Time
		}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate return rows", err)
	}
	return returns, nil
}

// nullableTime переводит нулевое время в NULL: возврат получает
// processed_at только после исполнения.
func nullableTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

var _ domain.ReturnStore = (*txReturns)(nil)
