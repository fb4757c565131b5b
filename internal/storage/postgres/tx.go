package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

// WithinTx выполняет fn в одной SQL-транзакции. Любая ошибка fn
// откатывает все мутации; row-level блокировки (SELECT ... FOR UPDATE)
// удерживаются до коммита или отката.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", domain.ErrPersistence, err)
	}

	t := &pgTx{ctx: ctx, tx: sqlTx}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w: rollback after %v: %v", domain.ErrPersistence, err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", domain.ErrPersistence, err)
	}
	return nil
}

// pgTx предоставляет транзакционные репозитории поверх одного *sql.Tx.
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Products() domain.ProductStore { return &txProducts{t} }
func (t *pgTx) Orders() domain.OrderStore     { return &txOrders{t} }
func (t *pgTx) Returns() domain.ReturnStore   { return &txReturns{t} }
func (t *pgTx) Ledger() domain.LedgerStore    { return &txLedger{t} }
func (t *pgTx) Audit() domain.AuditStore      { return &txAudit{t} }
func (t *pgTx) Outbox() domain.OutboxStore    { return &txOutbox{t} }

// persistenceErr помечает инфраструктурную ошибку хранилища, сохраняя
// исходный текст для логов.
func persistenceErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*pgTx)(nil)
