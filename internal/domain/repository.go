package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store открывает атомарные транзакции над персистентным состоянием.
// Каждая операция верхнего уровня (оформление заказа, возврат,
// корректировка остатка) выполняется в одной транзакции: либо все
// мутации фиксируются, либо ни одна.
type Store interface {
	// WithinTx выполняет fn в транзакции. Ошибка fn откатывает все
	// мутации; nil — фиксирует их.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx предоставляет доступ к репозиториям внутри одной транзакции.
type Tx interface {
	Products() ProductStore
	Orders() OrderStore
	Returns() ReturnStore
	Ledger() LedgerStore
	Audit() AuditStore
	Outbox() OutboxStore
}

// ProductStore — складское состояние товаров.
type ProductStore interface {
	// Get возвращает товар или ErrNotFound.
	Get(id string) (Product, error)
	// GetForUpdate возвращает товар под эксклюзивной row-level блокировкой,
	// удерживаемой до конца транзакции. Блокировки по нескольким товарам
	// берутся в порядке возрастания id во избежание deadlock.
	GetForUpdate(id string) (Product, error)
	// SetStock перезаписывает остаток. Единственный вызывающий — ledger:
	// прямые мутации остатка в обход журнала запрещены.
	SetStock(id string, stock int32) error
	// Create сохраняет товар (используется при приёмке каталога и в тестах).
	Create(p Product) error
	// List возвращает все товары для batch-проверок.
	List() ([]Product, error)
}

// OrderStore — заказы и их позиции.
type OrderStore interface {
	// Create сохраняет заказ вместе с позициями.
	Create(o Order) error
	// Get возвращает заказ с позициями или ErrNotFound.
	Get(id string) (Order, error)
	// UpdateStatus меняет статусы заказа с проверкой версии.
	UpdateStatus(id string, status OrderStatus, payment PaymentStatus, version int64) error
	// UpdateTotals перезаписывает денежные агрегаты заказа.
	UpdateTotals(id string, subtotal, total decimal.Decimal) error
	// List возвращает все заказы для batch-проверок.
	List() ([]Order, error)
	// ListLines возвращает все позиции, включая осиротевшие.
	ListLines() ([]OrderLine, error)
}

// ReturnStore — возвраты.
type ReturnStore interface {
	Create(r ProductReturn) error
	// Update перезаписывает статус/поля возврата.
	Update(r ProductReturn) error
	Get(id string) (ProductReturn, error)
	// ListByOrder возвращает возвраты по заказу.
	ListByOrder(orderID string) ([]ProductReturn, error)
}

// LedgerStore — append-only журнал движений остатков.
type LedgerStore interface {
	Append(t InventoryTransaction) error
	// ListByProduct возвращает записи по товару в порядке создания.
	ListByProduct(productID string, limit int) ([]InventoryTransaction, error)
	// List возвращает все записи для batch-проверок.
	List() ([]InventoryTransaction, error)
}

// AuditStore — append-only журнал аудита.
type AuditStore interface {
	Append(e AuditEntry) error
	// List возвращает последние записи по сущности (entity="" — все).
	List(entity string, limit int) ([]AuditEntry, error)
}

// OutboxStore позволяет сохранять события для последующей публикации
// в одной транзакции с изменением состояния.
type OutboxStore interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
}

// OutboxRepository — внетранзакционный доступ к outbox для воркера публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}
