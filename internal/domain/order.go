package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата и отгрузка ещё впереди.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusProcessing — заказ взят в работу складом.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан перевозчику.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled — заказ отменён до отгрузки.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusReturned — все позиции заказа полностью возвращены.
	OrderStatusReturned OrderStatus = "returned"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// OrderLine представляет одну позицию заказа. После создания позиция неизменяема.
type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int32
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	LineTotal decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует состояние заказа и его позиции.
// Инвариант: Total = Subtotal + Tax + Shipping − Discount.
type Order struct {
	ID                string
	CustomerID        string
	OrderDate         time.Time
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	ShippingAddressID string // пустая строка — адрес не указан
	BillingAddressID  string
	Subtotal          decimal.Decimal
	Tax               decimal.Decimal
	Shipping          decimal.Decimal
	Discount          decimal.Decimal
	Total             decimal.Decimal
	Lines             []OrderLine
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость внешнего перехода статуса.
// Переходы только вперёд; cancelled возможен до отгрузки; returned
// устанавливается исключительно обработчиком возвратов.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

// Validate проверяет инварианты позиции заказа.
func (l *OrderLine) Validate() []error {
	var errs []error

	if l.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if l.ProductID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if l.Quantity <= 0 {
		errs = append(errs, ErrLineQuantityInvalid)
	}
	if l.UnitPrice.Sign() <= 0 {
		errs = append(errs, ErrLinePriceInvalid)
	}

	gross := l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
	if l.Discount.Sign() < 0 || l.Discount.GreaterThan(gross) {
		errs = append(errs, ErrLineDiscountInvalid)
	}
	if !l.LineTotal.Equal(gross.Sub(l.Discount)) {
		errs = append(errs, ErrLineTotalMismatch)
	}

	return errs
}

// ValidateInvariants проверяет инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Lines) == 0 && o.Status != OrderStatusCancelled {
		errs = append(errs, ErrLinesRequired)
	}
	for _, amount := range []decimal.Decimal{o.Subtotal, o.Tax, o.Shipping, o.Discount, o.Total} {
		if amount.Sign() < 0 {
			errs = append(errs, ErrAmountNegative)
			break
		}
	}

	// Сверяем subtotal с суммой позиций, а total — с его компонентами.
	subtotal := decimal.Zero
	for i := range o.Lines {
		errs = append(errs, o.Lines[i].Validate()...)
		subtotal = subtotal.Add(o.Lines[i].LineTotal)
	}
	if len(o.Lines) > 0 && !o.Subtotal.Equal(subtotal) {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if !o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping).Sub(o.Discount)) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// LineForProduct возвращает позицию по товару или nil, если её нет.
func (o *Order) LineForProduct(productID string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ProductID == productID {
			return &o.Lines[i]
		}
	}
	return nil
}
