package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type txProducts struct {
	t *pgTx
}

const productColumns = `id, category_id, price, stock_quantity, reorder_level, is_active, created_at, updated_at`

func (r *txProducts) Get(id string) (domain.Product, error) {
	return r.get(id, false)
}

// GetForUpdate берёт эксклюзивную row-level блокировку на товар.
// Блокировка удерживается до конца транзакции; конкурентное оформление
// заказа на тот же товар дождётся коммита или отката первой транзакции.
func (r *txProducts) GetForUpdate(id string) (domain.Product, error) {
	return r.get(id, true)
}

func (r *txProducts) get(id string, forUpdate bool) (domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p domain.Product
	err := r.t.tx.QueryRowContext(r.t.ctx, query, id).Scan(
		&p.ID, &p.CategoryID, &p.Price, &p.StockQuantity,
		&p.ReorderLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, persistenceErr("select product", err)
	}
	return p, nil
}

func (r *txProducts) SetStock(id string, stock int32) error {
	res, err := r.t.tx.ExecContext(r.t.ctx, `
		UPDATE products
		SET stock_quantity = $2,
		    updated_at = $3
		WHERE id = $1
	`, id, stock, time.Now().UTC())
	if err != nil {
		return persistenceErr("update product stock", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceErr("product rows affected", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *txProducts) Create(p domain.Product) error {
	_, err := r.t.tx.ExecContext(r.t.ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		p.ID, p.CategoryID, p.Price, p.StockQuantity,
		p.ReorderLevel, p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return persistenceErr("insert product", err)
	}
	return nil
}

func (r *txProducts) List() ([]domain.Product, error) {
	rows, err := r.t.tx.QueryContext(r.t.ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, persistenceErr("list products", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.CategoryID, &p.Price, &p.StockQuantity,
			&p.ReorderLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, persistenceErr("scan product row", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("iterate product rows", err)
	}
	return products, nil
}

var _ domain.ProductStore = (*txProducts)(nil)
