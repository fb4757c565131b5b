package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type txOrders struct {
	t *pgTx
}

const orderColumns = `id, customer_id, order_date, status, payment_status,
	shipping_address_id, billing_address_id,
	subtotal, tax, shipping, discount, total,
	version, created_at, updated_at`

func (r *txOrders) Create(o domain.Order) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		o.ID, o.CustomerID, o.OrderDate, string(o.Status), string(o.PaymentStatus),
		o.ShippingAddressID, o.BillingAddressID,
		o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total,
		o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return persistenceErr("insert order", err)
	}

	for _, line := range o.Lines {
		if _, err := r.t.tx.ExecContext(r.t.ctx, `
			INSERT INTO order_lines (
				id, order_id, product_id, quantity, unit_price, discount, line_total, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			line.ID, o.ID, line.ProductID, line.Quantity,
			line.UnitPrice, line.Discount, line.LineTotal, line.CreatedAt,
		); err != nil {
			return persistenceErr("insert order line", err)
		}
	}
	return nil
}

func (r *txOrders) Get(id string) (domain.Order, error) {
	var (
		o       domain.Order
		status  string
		payment string
	)

	err := r.t.tx.QueryRowContext(r.t.ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&o.ID, &o.CustomerID, &o.OrderDate, &status, &payment,
		&o.ShippingAddressID, &o.BillingAddressID,
		&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, persistenceErr("select order", err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(payment)

	lines, err := r.loadLines(id)
	if err != nil {
		return domain.Order{}, err
	}
	o.Lines = lines
	return o, nil
}

func (r *txOrders) UpdateStatus(id string, status domain.OrderStatus, payment domain.PaymentStatus, version int64) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE orders
		SET status = $2,
		    payment_status = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1
		  AND version = $5
	`, id, string(status), string(payment), time.Now().UTC(), version)
	if err != nil {
		return persistenceErr("update order status", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("order rows affected", err)
	}
	if affected == 0 {
		exists, err := r.exists(id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *txOrders) UpdateTotals(id string, subtotal, total decimal.Decimal) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE orders
		SET subtotal = $2,
		    total = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1
	`, id, subtotal, total, time.Now().UTC())
	if err != nil {
		return persistenceErr("update order totals", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("order rows affected", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *txOrders) List() ([]domain.Order, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, persistenceErr("list orders", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			o       domain.Order
			status  string
			payment string
		)
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.OrderDate, &status, &payment,
			&o.ShippingAddressID, &o.BillingAddressID,
			&o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total,
			&o.Version, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, persistenceErr("scan order row", err)
		}
		o.Status = domain.OrderStatus(status)
		o.PaymentStatus = domain.PaymentStatus(payment)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate order rows", err)
	}

	for i := range orders {
		lines, err := r.loadLines(orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func (r *txOrders) ListLines() ([]domain.OrderLine, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, discount, line_total, created_at
		FROM order_lines
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, persistenceErr("list order lines", err)
	}
	defer rows.Close()

	return scanLines(rows)
}

func (r *txOrders) loadLines(orderID string) ([]domain.OrderLine, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, discount, line_total, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, persistenceErr("load order lines", err)
	}
	defer rows.Close()

	return scanLines(rows)
}

func (r *txOrders) exists(id string) (bool, error) {
	var found string
	err := r.t.tx.QueryRowContext(r.t.ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, persistenceErr("check order exists", err)
}

func scanLines(rows *sql.Rows) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.Quantity,
			&line.UnitPrice, &line.Discount, &line.LineTotal, &line.CreatedAt,
		); err != nil {
			return nil, persistenceErr("scan order line", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate order lines", err)
	}
	return lines, nil
}

var _ domain.OrderStore = (*txOrders)(nil)
