package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Store — in-memory реализация domain.Store для локальной разработки и
// тестов. Атомарность транзакций обеспечивает журнал undo-операций:
// при ошибке fn все мутации откатываются в обратном порядке. Конкурентные
// резервы одного товара сериализуются per-product мьютексами, которые
// GetForUpdate удерживает до конца транзакции; блокировки по нескольким
// товарам должны браться в порядке возрастания id (это обязанность
// вызывающего, как и в PostgreSQL-реализации).
type Store struct {
	mu           sync.RWMutex
	products     map[string]domain.Product
	orders       map[string]domain.Order // позиции хранятся отдельно в lines
	lines        map[string]domain.OrderLine
	returns      map[string]domain.ProductReturn
	ledger       []domain.InventoryTransaction
	audit        []domain.AuditEntry
	outbox       *outboxRepositoryInMemory
	productLocks map[string]*sync.Mutex
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		products:     make(map[string]domain.Product),
		orders:       make(map[string]domain.Order),
		lines:        make(map[string]domain.OrderLine),
		returns:      make(map[string]domain.ProductReturn),
		outbox:       NewOutboxRepository(),
		productLocks: make(map[string]*sync.Mutex),
	}
}

// Outbox возвращает outbox-репозиторий для воркера публикации.
func (s *Store) Outbox() domain.OutboxRepository {
	return s.outbox
}

// WithinTx выполняет fn; при ошибке все мутации откатываются.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, heldLocks: make(map[string]*sync.Mutex)}
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// SeedLine вставляет позицию заказа напрямую, минуя Create.
// Используется в тестах integrity-проверок для воспроизведения
// осиротевших записей.
func (s *Store) SeedLine(line domain.OrderLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[line.ID] = line
}

func (s *Store) productLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.productLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.productLocks[id] = lock
	}
	return lock
}

// memTx — одна транзакция над Store.
type memTx struct {
	store     *Store
	heldLocks map[string]*sync.Mutex
	lockOrder []string
	undo      []func()
}

func (t *memTx) Products() domain.ProductStore { return &memProducts{tx: t} }
func (t *memTx) Orders() domain.OrderStore     { return &memOrders{tx: t} }
func (t *memTx) Returns() domain.ReturnStore   { return &memReturns{tx: t} }
func (t *memTx) Ledger() domain.LedgerStore    { return &memLedger{tx: t} }
func (t *memTx) Audit() domain.AuditStore      { return &memAudit{tx: t} }
func (t *memTx) Outbox() domain.OutboxStore    { return &memOutbox{tx: t} }

func (t *memTx) pushUndo(fn func()) {
	t.undo = append(t.undo, fn)
}

// rollback выполняет undo-журнал в обратном порядке.
func (t *memTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// releaseLocks снимает row-level блокировки в обратном порядке захвата.
func (t *memTx) releaseLocks() {
	for i := len(t.lockOrder) - 1; i >= 0; i-- {
		t.heldLocks[t.lockOrder[i]].Unlock()
	}
	t.lockOrder = nil
	t.heldLocks = make(map[string]*sync.Mutex)
}

// --- products ---

type memProducts struct {
	tx *memTx
}

func (p *memProducts) Get(id string) (domain.Product, error) {
	s := p.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return product, nil
}

// GetForUpdate берёт эксклюзивную блокировку строки товара и удерживает
// её до конца транзакции. Повторный вызов в той же транзакции блокировку
// не дублирует.
func (p *memProducts) GetForUpdate(id string) (domain.Product, error) {
	t := p.tx
	if _, held := t.heldLocks[id]; !held {
		lock := t.store.productLock(id)
		lock.Lock()
		t.heldLocks[id] = lock
		t.lockOrder = append(t.lockOrder, id)
	}
	return p.Get(id)
}

func (p *memProducts) SetStock(id string, stock int32) error {
	s := p.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}

	prev := product
	product.StockQuantity = stock
	product.UpdatedAt = time.Now().UTC()
	s.products[id] = product

	p.tx.pushUndo(func() { s.products[id] = prev })
	return nil
}

func (p *memProducts) Create(product domain.Product) error {
	s := p.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	s.products[product.ID] = product

	p.tx.pushUndo(func() { delete(s.products, product.ID) })
	return nil
}

func (p *memProducts) List() ([]domain.Product, error) {
	s := p.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		result = append(result, product)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- orders ---

type memOrders struct {
	tx *memTx
}

func (o *memOrders) Create(order domain.Order) error {
	s := o.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}

	lines := order.Lines
	stored := order
	stored.Lines = nil
	s.orders[order.ID] = stored

	lineIDs := make([]string, 0, len(lines))
	for _, line := range lines {
		s.lines[line.ID] = line
		lineIDs = append(lineIDs, line.ID)
	}

	o.tx.pushUndo(func() {
		delete(s.orders, order.ID)
		for _, id := range lineIDs {
			delete(s.lines, id)
		}
	})
	return nil
}

func (o *memOrders) Get(id string) (domain.Order, error) {
	s := o.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return o.assemble(id)
}

// assemble собирает заказ с позициями; вызывается под s.mu.
func (o *memOrders) assemble(id string) (domain.Order, error) {
	s := o.tx.store
	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}

	for _, line := range s.lines {
		if line.OrderID == id {
			order.Lines = append(order.Lines, line)
		}
	}
	sort.Slice(order.Lines, func(i, j int) bool {
		if !order.Lines[i].CreatedAt.Equal(order.Lines[j].CreatedAt) {
			return order.Lines[i].CreatedAt.Before(order.Lines[j].CreatedAt)
		}
		return order.Lines[i].ID < order.Lines[j].ID
	})
	return order, nil
}

func (o *memOrders) UpdateStatus(id string, status domain.OrderStatus, payment domain.PaymentStatus, version int64) error {
	s := o.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != version {
		return domain.ErrVersionConflict
	}

	prev := current
	current.Status = status
	current.PaymentStatus = payment
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	s.orders[id] = current

	o.tx.pushUndo(func() { s.orders[id] = prev })
	return nil
}

func (o *memOrders) UpdateTotals(id string, subtotal, total decimal.Decimal) error {
	s := o.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}

	prev := current
	current.Subtotal = subtotal
	current.Total = total
	current.UpdatedAt = time.Now().UTC()
	s.orders[id] = current

	o.tx.pushUndo(func() { s.orders[id] = prev })
	return nil
}

func (o *memOrders) List() ([]domain.Order, error) {
	s := o.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		order, err := o.assemble(id)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, nil
}

func (o *memOrders) ListLines() ([]domain.OrderLine, error) {
	s := o.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.OrderLine, 0, len(s.lines))
	for _, line := range s.lines {
		result = append(result, line)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- returns ---

type memReturns struct {
	tx *memTx
}

func (r *memReturns) Create(ret domain.ProductReturn) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.returns[ret.ID]; exists {
		return domain.ErrVersionConflict
	}
	s.returns[ret.ID] = ret

	r.tx.pushUndo(func() { delete(s.returns, ret.ID) })
	return nil
}

func (r *memReturns) Update(ret domain.ProductReturn) error {
	s := r.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.returns[ret.ID]
	if !ok {
		return domain.ErrNotFound
	}
	s.returns[ret.ID] = ret

	r.tx.pushUndo(func() { s.returns[ret.ID] = prev })
	return nil
}

func (r *memReturns) Get(id string) (domain.ProductReturn, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret, ok := s.returns[id]
	if !ok {
		return domain.ProductReturn{}, domain.ErrNotFound
	}
	return ret, nil
}

func (r *memReturns) ListByOrder(orderID string) ([]domain.ProductReturn, error) {
	s := r.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ProductReturn, 0)
	for _, ret := range s.returns {
		if ret.OrderID == orderID {
			result = append(result, ret)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// --- ledger ---

type memLedger struct {
	tx *memTx
}

func (l *memLedger) Append(entry domain.InventoryTransaction) error {
	s := l.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger = append(s.ledger, entry)

	id := entry.ID
	l.tx.pushUndo(func() {
		for i := len(s.ledger) - 1; i >= 0; i-- {
			if s.ledger[i].ID == id {
				s.ledger = append(s.ledger[:i], s.ledger[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (l *memLedger) ListByProduct(productID string, limit int) ([]domain.InventoryTransaction, error) {
	s := l.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryTransaction, 0)
	for _, entry := range s.ledger {
		if entry.ProductID == productID {
			result = append(result, entry)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

func (l *memLedger) List() ([]domain.InventoryTransaction, error) {
	s := l.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.InventoryTransaction(nil), s.ledger...), nil
}

// --- audit ---

type memAudit struct {
	tx *memTx
}

func (a *memAudit) Append(entry domain.AuditEntry) error {
	s := a.tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, entry)

	id := entry.ID
	a.tx.pushUndo(func() {
		for i := len(s.audit) - 1; i >= 0; i-- {
			if s.audit[i].ID == id {
				s.audit = append(s.audit[:i], s.audit[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (a *memAudit) List(entity string, limit int) ([]domain.AuditEntry, error) {
	s := a.tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditEntry, 0)
	for _, entry := range s.audit {
		if entity == "" || entry.Entity == entity {
			result = append(result, entry)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// --- outbox ---

type memOutbox struct {
	tx *memTx
}

func (o *memOutbox) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	stored, err := o.tx.store.outbox.Enqueue(msg)
	if err != nil {
		return domain.OutboxMessage{}, err
	}
	o.tx.pushUndo(func() { o.tx.store.outbox.remove(stored.ID) })
	return stored, nil
}

var _ domain.Store = (*Store)(nil)
var _ domain.Tx = (*memTx)(nil)
