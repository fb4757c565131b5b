package domain

import "errors"

// Бизнес-ошибки операций. Все валидации выполняются до любых мутаций:
// при ошибке транзакция откатывается без частичных записей.
var (
	// ErrCustomerInvalid — клиент не найден или неактивен.
	ErrCustomerInvalid = errors.New("customer not found or inactive")
	// ErrProductInvalid — товар не найден или неактивен.
	ErrProductInvalid = errors.New("product not found or inactive")
	// ErrInsufficientStock — запрошенное количество превышает остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidAddress — адрес не принадлежит клиенту или неактивен.
	ErrInvalidAddress = errors.New("address invalid for customer")
	// ErrInvalidQuantity — количество вне допустимого диапазона.
	ErrInvalidQuantity = errors.New("quantity out of allowed range")
	// ErrReturnNotAllowed — статус заказа не допускает возврат.
	ErrReturnNotAllowed = errors.New("order status does not allow return")
	// ErrNotFound — запрошенная запись отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrStatusTransitionInvalid — недопустимый переход статуса заказа.
	ErrStatusTransitionInvalid = errors.New("order status transition not allowed")
	// ErrVersionConflict — конфликт версий при optimistic locking.
	ErrVersionConflict = errors.New("version conflict")
	// ErrPersistence — ошибка слоя хранения; передаётся вызывающему как есть.
	ErrPersistence = errors.New("persistence failure")
)

// Ошибки инвариантов сущностей.
var (
	ErrCustomerRequired       = errors.New("customer_id is required")
	ErrOrderIDRequired        = errors.New("order_id is required")
	ErrProductIDRequired      = errors.New("product_id is required")
	ErrLinesRequired          = errors.New("order must contain at least one line")
	ErrAmountNegative         = errors.New("order amounts must be non-negative")
	ErrLineQuantityInvalid    = errors.New("line quantity must be greater than zero")
	ErrLinePriceInvalid       = errors.New("line unit price must be greater than zero")
	ErrLineDiscountInvalid    = errors.New("line discount must be within [0, quantity*unit_price]")
	ErrLineTotalMismatch      = errors.New("line total does not match quantity*unit_price-discount")
	ErrSubtotalMismatch       = errors.New("order subtotal does not match sum of line totals")
	ErrTotalMismatch          = errors.New("order total does not match subtotal+tax+shipping-discount")
	ErrStockNegative          = errors.New("stock quantity must be non-negative")
	ErrLedgerDeltaMismatch    = errors.New("ledger previous_stock+delta does not match new_stock")
	ErrTransactionTypeInvalid = errors.New("inventory transaction type is invalid")
	ErrReturnQuantityInvalid  = errors.New("return quantity must be greater than zero")
	ErrRefundNegative         = errors.New("refund amount must be non-negative")
	ErrReturnStatusInvalid    = errors.New("return status is invalid")
	ErrDuplicateProductLine   = errors.New("order contains duplicate product lines")

	ErrAuditEntityRequired     = errors.New("audit entity is required")
	ErrAuditOperationRequired  = errors.New("audit operation is required")
	ErrAuditPrimaryKeyRequired = errors.New("audit primary key is required")
)

// Ошибки идемпотентности запросов.
var (
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ErrOutboxPublish — ошибка при публикации события из outbox.
var ErrOutboxPublish = errors.New("outbox publish failed")

// businessErrors перечисляет ошибки, означающие отказ по правилам домена,
// а не сбой инфраструктуры.
var businessErrors = []error{
	ErrCustomerInvalid,
	ErrProductInvalid,
	ErrInsufficientStock,
	ErrInvalidAddress,
	ErrInvalidQuantity,
	ErrReturnNotAllowed,
	ErrNotFound,
	ErrStatusTransitionInvalid,
	ErrVersionConflict,
}

// validationErrors перечисляет нарушения инвариантов входных данных.
var validationErrors = []error{
	ErrCustomerRequired,
	ErrOrderIDRequired,
	ErrProductIDRequired,
	ErrLinesRequired,
	ErrAmountNegative,
	ErrLineQuantityInvalid,
	ErrLinePriceInvalid,
	ErrLineDiscountInvalid,
	ErrLineTotalMismatch,
	ErrSubtotalMismatch,
	ErrTotalMismatch,
	ErrReturnQuantityInvalid,
	ErrRefundNegative,
	ErrReturnStatusInvalid,
	ErrDuplicateProductLine,
	ErrTransactionTypeInvalid,
}

// IsBusinessError сообщает, является ли ошибка доменным отказом.
func IsBusinessError(err error) bool {
	for _, be := range businessErrors {
		if errors.Is(err, be) {
			return true
		}
	}
	return false
}

// IsValidationError сообщает, является ли ошибка нарушением инварианта входа.
func IsValidationError(err error) bool {
	for _, ve := range validationErrors {
		if errors.Is(err, ve) {
			return true
		}
	}
	return false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
