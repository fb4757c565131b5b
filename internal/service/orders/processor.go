// Package orders реализует оформление заказа: валидация клиента, товаров
// и адресов, расчёт денежных агрегатов, резервирование остатков и запись
// заказа с позициями — всё в одной атомарной транзакции.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
)

// AuditWriter записывает события аудита внутри транзакции операции.
type AuditWriter interface {
	RecordInsert(tx domain.Tx, entity, primaryKey string, newValues any) error
	RecordUpdate(tx domain.Tx, entity, primaryKey string, oldValues, newValues any) error
}

// OrderItem — запрошенная позиция заказа.
type OrderItem struct {
	ProductID string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// OrderRequest — входные данные операции оформления заказа.
type OrderRequest struct {
	CustomerID        string
	ShippingAddressID string // пустая строка — адрес не указан
	BillingAddressID  string
	Items             []OrderItem
	TaxRate           decimal.Decimal
	Shipping          decimal.Decimal
	Discount          decimal.Decimal
}

// QuoteRequest — входные данные расчёта предварительной стоимости.
type QuoteRequest struct {
	CustomerID string
	ProductID  string // пустая строка — промо-надбавка не учитывается
	Quantity   int32
	WeightLb   float64
	Zone       pricing.Zone
	Method     pricing.Method
	OrderDate  time.Time // нулевое значение — текущая дата
}

// Quote — результат предварительного расчёта без побочных эффектов.
type Quote struct {
	Tier              pricing.Tier
	DiscountPercent   decimal.Decimal
	ShippingCost      decimal.Decimal
	EstimatedDelivery time.Time
}

// Processor выполняет операции над заказами.
type Processor struct {
	store     domain.Store
	customers domain.CustomerDirectory
	addresses domain.AddressDirectory
	catalog   domain.Catalog
	ledger    *ledger.Ledger
	audit     AuditWriter
	logger    *log.Entry
	metrics   *metrics.FulfillmentMetrics
}

// New создаёт процессор заказов с метриками.
func New(
	store domain.Store,
	customers domain.CustomerDirectory,
	addresses domain.AddressDirectory,
	catalog domain.Catalog,
	stockLedger *ledger.Ledger,
	auditTrail AuditWriter,
	logger *log.Entry,
) *Processor {
	processor := NewWithoutMetrics(store, customers, addresses, catalog, stockLedger, auditTrail, logger)
	processor.metrics = metrics.NewFulfillmentMetrics()
	return processor
}

// NewWithoutMetrics создаёт процессор заказов без метрик (для тестов).
func NewWithoutMetrics(
	store domain.Store,
	customers domain.CustomerDirectory,
	addresses domain.AddressDirectory,
	catalog domain.Catalog,
	stockLedger *ledger.Ledger,
	auditTrail AuditWriter,
	logger *log.Entry,
) *Processor {
	if logger == nil {
		logger = log.WithField("component", "order-processor")
	}
	return &Processor{
		store:     store,
		customers: customers,
		addresses: addresses,
		catalog:   catalog,
		ledger:    stockLedger,
		audit:     auditTrail,
		logger:    logger,
	}
}

// ProcessOrder оформляет заказ атомарно: любая ошибка валидации или
// резервирования откатывает транзакцию целиком, частичных записей нет.
func (p *Processor) ProcessOrder(ctx context.Context, req OrderRequest) (domain.Order, error) {
	started := time.Now()
	order, err := p.processOrder(ctx, req)

	if p.metrics != nil {
		p.metrics.RecordOrderDuration(time.Since(started))
		if err != nil {
			p.metrics.RecordOrderRejected(rejectReason(err))
		} else {
			p.metrics.RecordOrderProcessed()
			p.metrics.RecordOutboxEvent()
		}
	}

	if err != nil {
		p.logger.WithFields(log.Fields{
			"customer_id": req.CustomerID,
			"items":       len(req.Items),
		}).WithError(err).Warn("order rejected")
		return domain.Order{}, err
	}

	p.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.Total,
	}).Info("order processed")
	return order, nil
}

func (p *Processor) processOrder(ctx context.Context, req OrderRequest) (domain.Order, error) {
	if err := validateOrderRequest(req); err != nil {
		return domain.Order{}, err
	}

	active, err := p.customers.IsActive(req.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Order{}, domain.ErrCustomerInvalid
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("customer directory: %w", err)
	}
	if !active {
		return domain.Order{}, domain.ErrCustomerInvalid
	}

	var order domain.Order
	err = p.store.WithinTx(ctx, func(tx domain.Tx) error {
		// Блокировки товаров берутся в порядке возрастания id,
		// чтобы пересекающиеся заказы не взаимоблокировались.
		items := make([]OrderItem, len(req.Items))
		copy(items, req.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		for _, item := range items {
			product, err := tx.Products().GetForUpdate(item.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrProductInvalid
			}
			if err != nil {
				return err
			}
			if !product.IsActive {
				return domain.ErrProductInvalid
			}
			if item.Quantity > product.StockQuantity {
				return domain.ErrInsufficientStock
			}
		}

		if err := p.resolveAddress(req.ShippingAddressID, req.CustomerID); err != nil {
			return err
		}
		if err := p.resolveAddress(req.BillingAddressID, req.CustomerID); err != nil {
			return err
		}

		order = buildOrder(req)
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errs[0]
		}

		if err := tx.Orders().Create(order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			if _, err := p.ledger.Reserve(tx, item.ProductID, item.Quantity, order.ID, "order"); err != nil {
				return err
			}
		}

		if err := p.audit.RecordInsert(tx, "orders", order.ID, orderAuditValues(order)); err != nil {
			return err
		}

		return enqueueOrderEvent(tx, order, "order.created")
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// UpdateStatus выполняет внешний переход статуса заказа. Переходы только
// вперёд; статус returned устанавливается исключительно обработчиком
// возвратов и здесь недоступен.
func (p *Processor) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, payment domain.PaymentStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, domain.ErrStatusTransitionInvalid
	}

	var updated domain.Order
	err := p.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(status) {
			return domain.ErrStatusTransitionInvalid
		}

		nextPayment := order.PaymentStatus
		if payment != "" {
			nextPayment = payment
		}

		if err := tx.Orders().UpdateStatus(orderID, status, nextPayment, order.Version); err != nil {
			return err
		}

		err = p.audit.RecordUpdate(tx, "orders", orderID,
			map[string]any{"status": order.Status, "payment_status": order.PaymentStatus},
			map[string]any{"status": status, "payment_status": nextPayment})
		if err != nil {
			return err
		}

		updated, err = tx.Orders().Get(orderID)
		if err != nil {
			return err
		}
		return enqueueOrderEvent(tx, updated, "order.status_changed")
	})
	if err != nil {
		return domain.Order{}, err
	}

	p.logger.WithFields(log.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order status updated")
	return updated, nil
}

// Get возвращает заказ с позициями.
func (p *Processor) Get(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := p.store.WithinTx(ctx, func(tx domain.Tx) error {
		var err error
		order, err = tx.Orders().Get(orderID)
		return err
	})
	return order, err
}

// Quote рассчитывает tier, скидку, доставку и срок без побочных эффектов.
func (p *Processor) Quote(req QuoteRequest) (Quote, error) {
	history, err := p.customers.TierHistory(req.CustomerID)
	if errors.Is(err, domain.ErrNotFound) {
		return Quote{}, domain.ErrCustomerInvalid
	}
	if err != nil {
		return Quote{}, fmt.Errorf("customer directory: %w", err)
	}

	promotional := false
	if req.ProductID != "" {
		info, err := p.catalog.ProductInfo(req.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return Quote{}, domain.ErrProductInvalid
		}
		if err != nil {
			return Quote{}, fmt.Errorf("catalog: %w", err)
		}
		promotional = info.Promotional
	}

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	tier := pricing.CustomerTier(history.TotalSpent, history.OrderCount)
	return Quote{
		Tier:              tier,
		DiscountPercent:   pricing.DiscountPercent(tier, req.Quantity, promotional),
		ShippingCost:      pricing.ShippingCost(req.WeightLb, req.Zone, req.Method),
		EstimatedDelivery: pricing.DeliveryEstimate(orderDate, req.Method, req.Zone),
	}, nil
}

func (p *Processor) resolveAddress(addressID, customerID string) error {
	if addressID == "" {
		return nil
	}
	ref, err := p.addresses.Resolve(addressID, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrInvalidAddress
	}
	if err != nil {
		return fmt.Errorf("address directory: %w", err)
	}
	if !ref.IsActive {
		return domain.ErrInvalidAddress
	}
	return nil
}

func validateOrderRequest(req OrderRequest) error {
	if req.CustomerID == "" {
		return domain.ErrCustomerRequired
	}
	if len(req.Items) == 0 {
		return domain.ErrLinesRequired
	}
	if req.TaxRate.Sign() < 0 || req.Shipping.Sign() < 0 || req.Discount.Sign() < 0 {
		return domain.ErrAmountNegative
	}

	seen := make(map[string]struct{}, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			return domain.ErrProductIDRequired
		}
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
		if item.UnitPrice.Sign() <= 0 {
			return domain.ErrLinePriceInvalid
		}
		if _, ok := seen[item.ProductID]; ok {
			return domain.ErrDuplicateProductLine
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func buildOrder(req OrderRequest) domain.Order {
	now := time.Now().UTC()
	orderID := uuid.NewString()

	subtotal := decimal.Zero
	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, domain.OrderLine{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  decimal.Zero,
			LineTotal: lineTotal,
			CreatedAt: now,
		})
	}

	tax := subtotal.Mul(req.TaxRate)
	total := subtotal.Add(tax).Add(req.Shipping).Sub(req.Discount)

	return domain.Order{
		ID:                orderID,
		CustomerID:        req.CustomerID,
		OrderDate:         now,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Subtotal:          subtotal,
		Tax:               tax,
		Shipping:          req.Shipping,
		Discount:          req.Discount,
		Total:             total,
		Lines:             lines,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func orderAuditValues(order domain.Order) map[string]any {
	return map[string]any{
		"customer_id":    order.CustomerID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"subtotal":       order.Subtotal.String(),
		"total":          order.Total.String(),
		"lines":          len(order.Lines),
	}
}

func enqueueOrderEvent(tx domain.Tx, order domain.Order, eventType string) error {
	payload, err := json.Marshal(map[string]any{
		"order_id":       order.ID,
		"customer_id":    order.CustomerID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"total":          order.Total.String(),
		"occurred_at":    time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerInvalid):
		return "customer_invalid"
	case errors.Is(err, domain.ErrProductInvalid):
		return "product_invalid"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrDuplicateProductLine):
		return "duplicate_line"
	case domain.IsValidationError(err):
		return "validation"
	case domain.IsBusinessError(err):
		return "business_rule"
	default:
		return "internal"
	}
}
