package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnStatus описывает жизненный цикл возврата.
type ReturnStatus string

const (
	// ReturnStatusPending — возврат зарегистрирован, решение не принято.
	ReturnStatusPending ReturnStatus = "pending"
	// ReturnStatusApproved — возврат одобрен, но ещё не исполнен.
	ReturnStatusApproved ReturnStatus = "approved"
	// ReturnStatusRejected — возврат отклонён.
	ReturnStatusRejected ReturnStatus = "rejected"
	// ReturnStatusProcessed — возврат исполнен: деньги и остатки учтены.
	ReturnStatusProcessed ReturnStatus = "processed"
)

// ProductReturn описывает возврат части одной позиции заказа.
// Сумма ReturnQuantity всех processed-возвратов по позиции не может
// превышать исходное количество в позиции.
type ProductReturn struct {
	ID             string
	OrderID        string
	ProductID      string
	CustomerID     string
	ReturnQuantity int32
	RefundAmount   decimal.Decimal
	Reason         string
	Status         ReturnStatus
	Restock        bool
	ProcessedAt    time.Time // нулевое значение, пока возврат не исполнен
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnStatusPending, ReturnStatusApproved, ReturnStatusRejected, ReturnStatusProcessed:
		return true
	default:
		return false
	}
}

// Validate проверяет корректность полей возврата.
func (r *ProductReturn) Validate() []error {
	var errs []error

	if r.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if r.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if r.ReturnQuantity <= 0 {
		errs = append(errs, ErrReturnQuantityInvalid)
	}
	if r.RefundAmount.Sign() < 0 {
		errs = append(errs, ErrRefundNegative)
	}
	if !r.Status.Valid() {
		errs = append(errs, ErrReturnStatusInvalid)
	}

	return errs
}
