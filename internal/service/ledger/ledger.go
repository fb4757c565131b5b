// Package ledger реализует единственный разрешённый путь мутации остатков:
// каждое движение — это чтение под эксклюзивной блокировкой строки товара,
// валидация, запись нового остатка и append-запись журнала, всё внутри
// транзакции вызывающего. Ошибка валидации откатывает транзакцию без
// частичных записей.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
)

// Ledger выполняет движения остатков внутри чужой транзакции.
type Ledger struct {
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
}

// New создаёт ledger с метриками.
func New(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory-ledger")
	}
	return &Ledger{
		logger:  logger,
		metrics: metrics.NewFulfillmentMetrics(),
	}
}

// NewWithoutMetrics создаёт ledger без метрик (для тестов).
func NewWithoutMetrics(logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "inventory-ledger")
	}
	return &Ledger{logger: logger}
}

// Reserve атомарно списывает остаток под заказ. Возвращает
// ErrInsufficientStock, если запрошено больше доступного, и
// ErrProductInvalid для неактивного товара. Конкурентные резервы одного
// товара сериализуются блокировкой строки внутри GetForUpdate.
func (l *Ledger) Reserve(tx domain.Tx, productID string, quantity int32, referenceID, referenceType string) (domain.InventoryTransaction, error) {
	if quantity <= 0 {
		return domain.InventoryTransaction{}, domain.ErrInvalidQuantity
	}

	product, err := tx.Products().GetForUpdate(productID)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	if !product.IsActive {
		return domain.InventoryTransaction{}, domain.ErrProductInvalid
	}
	if quantity > product.StockQuantity {
		if l.metrics != nil {
			l.metrics.RecordReservationFailure()
		}
		l.logger.WithFields(log.Fields{
			"product_id": productID,
			"requested":  quantity,
			"available":  product.StockQuantity,
		}).Warn("reservation rejected: insufficient stock")
		return domain.InventoryTransaction{}, domain.ErrInsufficientStock
	}

	entry, err := l.apply(tx, product, -quantity, domain.TransactionTypeSale, referenceID, referenceType)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	if l.metrics != nil {
		l.metrics.RecordReservation()
	}
	return entry, nil
}

// Restock симметрично увеличивает остаток. txType задаёт семантику
// пополнения: return, restock или adjustment.
func (l *Ledger) Restock(tx domain.Tx, productID string, quantity int32, txType domain.TransactionType, referenceID, referenceType string) (domain.InventoryTransaction, error) {
	if quantity <= 0 {
		return domain.InventoryTransaction{}, domain.ErrInvalidQuantity
	}
	switch txType {
	case domain.TransactionTypeReturn, domain.TransactionTypeRestock, domain.TransactionTypeAdjustment:
	default:
		return domain.InventoryTransaction{}, domain.ErrTransactionTypeInvalid
	}

	product, err := tx.Products().GetForUpdate(productID)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}

	entry, err := l.apply(tx, product, quantity, txType, referenceID, referenceType)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	if l.metrics != nil {
		l.metrics.RecordRestock()
	}
	return entry, nil
}

// Adjust применяет ручную корректировку с произвольным знаком.
// Возвращает ErrInsufficientStock, если итоговый остаток стал бы отрицательным.
func (l *Ledger) Adjust(tx domain.Tx, productID string, delta int32, referenceID string) (domain.InventoryTransaction, error) {
	if delta == 0 {
		return domain.InventoryTransaction{}, domain.ErrInvalidQuantity
	}

	product, err := tx.Products().GetForUpdate(productID)
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	if product.StockQuantity+delta < 0 {
		return domain.InventoryTransaction{}, domain.ErrInsufficientStock
	}

	entry, err := l.apply(tx, product, delta, domain.TransactionTypeAdjustment, referenceID, "adjustment")
	if err != nil {
		return domain.InventoryTransaction{}, err
	}
	if l.metrics != nil {
		l.metrics.RecordAdjustment()
	}
	return entry, nil
}

// apply записывает новый остаток и append-запись журнала. Вызывается
// только под блокировкой строки товара.
func (l *Ledger) apply(tx domain.Tx, product domain.Product, delta int32, txType domain.TransactionType, referenceID, referenceType string) (domain.InventoryTransaction, error) {
	newStock := product.StockQuantity + delta

	if err := tx.Products().SetStock(product.ID, newStock); err != nil {
		return domain.InventoryTransaction{}, fmt.Errorf("set stock: %w", err)
	}

	entry := domain.InventoryTransaction{
		ID:            uuid.NewString(),
		ProductID:     product.ID,
		Type:          txType,
		QuantityDelta: delta,
		PreviousStock: product.StockQuantity,
		NewStock:      newStock,
		ReferenceID:   referenceID,
		ReferenceType: referenceType,
		CreatedAt:     time.Now().UTC(),
	}
	if errs := entry.Validate(); len(errs) > 0 {
		return domain.InventoryTransaction{}, errs[0]
	}
	if err := tx.Ledger().Append(entry); err != nil {
		return domain.InventoryTransaction{}, fmt.Errorf("append ledger entry: %w", err)
	}

	l.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"type":       txType,
		"delta":      delta,
		"new_stock":  newStock,
	}).Debug("ledger entry recorded")

	return entry, nil
}
