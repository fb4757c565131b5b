package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product хранит складское состояние товара. Каталожные атрибуты
// (название, категория, цена) принадлежат внешнему каталогу; ядро
// читает их и мутирует только StockQuantity — строго через ledger.
type Product struct {
	ID            string
	CategoryID    string
	Price         decimal.Decimal
	StockQuantity int32
	ReorderLevel  int32
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LowStock сообщает, опустился ли остаток до порога дозаказа.
func (p *Product) LowStock() bool {
	return p.StockQuantity <= p.ReorderLevel
}

// TransactionType определяет тип движения остатка в ledger.
type TransactionType string

const (
	TransactionTypeSale       TransactionType = "sale"
	TransactionTypeReturn     TransactionType = "return"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeRestock    TransactionType = "restock"
	TransactionTypeDamage     TransactionType = "damage"
	TransactionTypeTransfer   TransactionType = "transfer"
)

// Valid проверяет, что тип относится к поддерживаемым значениям.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeReturn, TransactionTypeAdjustment,
		TransactionTypeRestock, TransactionTypeDamage, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// InventoryTransaction — запись append-only журнала движений остатка.
// Инвариант: PreviousStock + QuantityDelta = NewStock, и NewStock равен
// остатку товара сразу после коммита записи.
type InventoryTransaction struct {
	ID            string
	ProductID     string
	Type          TransactionType
	QuantityDelta int32
	PreviousStock int32
	NewStock      int32
	ReferenceID   string // идентификатор заказа/возврата/корректировки
	ReferenceType string
	CreatedAt     time.Time
}

// Validate проверяет согласованность записи ledger.
func (t *InventoryTransaction) Validate() []error {
	var errs []error

	if t.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if !t.Type.Valid() {
		errs = append(errs, ErrTransactionTypeInvalid)
	}
	if t.PreviousStock+t.QuantityDelta != t.NewStock {
		errs = append(errs, ErrLedgerDeltaMismatch)
	}
	if t.NewStock < 0 {
		errs = append(errs, ErrStockNegative)
	}

	return errs
}
