// Package returns реализует обработку возвратов: валидация против истории
// позиций заказа, запись возврата, опциональное пополнение остатка и
// перевод заказа в returned при полном возврате — в одной транзакции.
package returns

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
)

// AuditWriter записывает события аудита внутри транзакции операции.
type AuditWriter interface {
	RecordInsert(tx domain.Tx, entity, primaryKey string, newValues any) error
	RecordUpdate(tx domain.Tx, entity, primaryKey string, oldValues, newValues any) error
}

// ReturnRequest — входные данные операции возврата.
type ReturnRequest struct {
	OrderID        string
	ProductID      string
	ReturnQuantity int32
	Reason         string
	// RefundAmount nil — сумма по умолчанию: quantity × unitPrice позиции.
	RefundAmount *decimal.Decimal
	Restock      bool
}

// Processor выполняет операции над возвратами.
type Processor struct {
	store   domain.Store
	ledger  *ledger.Ledger
	audit   AuditWriter
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
}

// New создаёт процессор возвратов с метриками.
func New(store domain.Store, stockLedger *ledger.Ledger, auditTrail AuditWriter, logger *log.Entry) *Processor {
	processor := NewWithoutMetrics(store, stockLedger, auditTrail, logger)
	processor.metrics = metrics.NewFulfillmentMetrics()
	return processor
}

// NewWithoutMetrics создаёт процессор возвратов без метрик (для тестов).
func NewWithoutMetrics(store domain.Store, stockLedger *ledger.Ledger, auditTrail AuditWriter, logger *log.Entry) *Processor {
	if logger == nil {
		logger = log.WithField("component", "return-processor")
	}
	return &Processor{
		store:  store,
		ledger: stockLedger,
		audit:  auditTrail,
		logger: logger,
	}
}

// ProcessReturn обрабатывает возврат атомарно: ошибка на любом шаге
// откатывает возврат вместе с пополнением остатка.
func (p *Processor) ProcessReturn(ctx context.Context, req ReturnRequest) (domain.ProductReturn, error) {
	started := time.Now()
	productReturn, err := p.processReturn(ctx, req)

	if p.metrics != nil {
		p.metrics.RecordReturnDuration(time.Since(started))
		if err != nil {
			p.metrics.RecordReturnRejected(rejectReason(err))
		} else {
			p.metrics.RecordReturnProcessed()
		}
	}

	if err != nil {
		p.logger.WithFields(log.Fields{
			"order_id":   req.OrderID,
			"product_id": req.ProductID,
		}).WithError(err).Warn("return rejected")
		return domain.ProductReturn{}, err
	}

	p.logger.WithFields(log.Fields{
		"return_id": productReturn.ID,
		"order_id":  productReturn.OrderID,
		"restock":   productReturn.Restock,
	}).Info("return processed")
	return productReturn, nil
}

func (p *Processor) processReturn(ctx context.Context, req ReturnRequest) (domain.ProductReturn, error) {
	if req.OrderID == "" {
		return domain.ProductReturn{}, domain.ErrOrderIDRequired
	}
	if req.ProductID == "" {
		return domain.ProductReturn{}, domain.ErrProductIDRequired
	}
	if req.ReturnQuantity <= 0 {
		return domain.ProductReturn{}, domain.ErrInvalidQuantity
	}
	if req.RefundAmount != nil && req.RefundAmount.Sign() < 0 {
		return domain.ProductReturn{}, domain.ErrRefundNegative
	}

	var result domain.ProductReturn
	err := p.store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().Get(req.OrderID)
		if err != nil {
			return err
		}
		line := order.LineForProduct(req.ProductID)
		if line == nil {
			return domain.ErrNotFound
		}
		if order.Status != domain.OrderStatusDelivered && order.Status != domain.OrderStatusShipped {
			return domain.ErrReturnNotAllowed
		}

		// Конкурирующие возвраты сериализуются на row-lock'ах товаров
		// заказа, взятых в порядке возрастания id — как при
		// резервировании. Без блокировки два параллельных возврата не
		// видят друг друга ни при проверке остатка позиции, ни при
		// проверке полного возврата заказа.
		if err := lockOrderProducts(tx, order); err != nil {
			return err
		}

		processed, err := processedQuantities(tx, order.ID)
		if err != nil {
			return err
		}
		// Количество проверяется против ещё не возвращённого остатка
		// позиции, чтобы сумма processed-возвратов не превысила её.
		if req.ReturnQuantity > line.Quantity-processed[req.ProductID] {
			return domain.ErrInvalidQuantity
		}

		refund := line.UnitPrice.Mul(decimal.NewFromInt32(req.ReturnQuantity))
		if req.RefundAmount != nil {
			refund = *req.RefundAmount
		}

		now := time.Now().UTC()
		productReturn := domain.ProductReturn{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ProductID:      req.ProductID,
			CustomerID:     order.CustomerID,
			ReturnQuantity: req.ReturnQuantity,
			RefundAmount:   refund,
			Reason:         req.Reason,
			Status:         domain.ReturnStatusApproved,
			Restock:        req.Restock,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if errs := productReturn.Validate(); len(errs) > 0 {
			return errs[0]
		}
		if err := tx.Returns().Create(productReturn); err != nil {
			return fmt.Errorf("create return: %w", err)
		}

		if req.Restock {
			if _, err := p.ledger.Restock(tx, req.ProductID, req.ReturnQuantity, domain.TransactionTypeReturn, productReturn.ID, "return"); err != nil {
				return err
			}
		}

		productReturn.Status = domain.ReturnStatusProcessed
		productReturn.ProcessedAt = now
		productReturn.UpdatedAt = now
		if err := tx.Returns().Update(productReturn); err != nil {
			return fmt.Errorf("update return: %w", err)
		}

		fullyReturned, err := p.allLinesReturned(tx, order)
		if err != nil {
			return err
		}
		if fullyReturned {
			if err := tx.Orders().UpdateStatus(order.ID, domain.OrderStatusReturned, domain.PaymentStatusRefunded, order.Version); err != nil {
				return err
			}
			err = p.audit.RecordUpdate(tx, "orders", order.ID,
				map[string]any{"status": order.Status, "payment_status": order.PaymentStatus},
				map[string]any{"status": domain.OrderStatusReturned, "payment_status": domain.PaymentStatusRefunded})
			if err != nil {
				return err
			}
		}

		if err := p.audit.RecordInsert(tx, "returns", productReturn.ID, returnAuditValues(productReturn)); err != nil {
			return err
		}
		if err := enqueueReturnEvent(tx, productReturn, fullyReturned); err != nil {
			return err
		}

		result = productReturn
		return nil
	})
	if err != nil {
		return domain.ProductReturn{}, err
	}
	return result, nil
}

// Get возвращает возврат по идентификатору.
func (p *Processor) Get(ctx context.Context, returnID string) (domain.ProductReturn, error) {
	var productReturn domain.ProductReturn
	err := p.store.WithinTx(ctx, func(tx domain.Tx) error {
		var err error
		productReturn, err = tx.Returns().Get(returnID)
		return err
	})
	return productReturn, err
}

// lockOrderProducts берёт эксклюзивные блокировки строк всех товаров
// заказа в отсортированном порядке и держит их до конца транзакции.
func lockOrderProducts(tx domain.Tx, order domain.Order) error {
	productIDs := make([]string, 0, len(order.Lines))
	for i := range order.Lines {
		productIDs = append(productIDs, order.Lines[i].ProductID)
	}
	sort.Strings(productIDs)

	for _, productID := range productIDs {
		if _, err := tx.Products().GetForUpdate(productID); err != nil {
			return fmt.Errorf("lock product %s: %w", productID, err)
		}
	}
	return nil
}

// allLinesReturned сообщает, возвращены ли полностью все позиции заказа.
func (p *Processor) allLinesReturned(tx domain.Tx, order domain.Order) (bool, error) {
	processed, err := processedQuantities(tx, order.ID)
	if err != nil {
		return false, err
	}
	for i := range order.Lines {
		if processed[order.Lines[i].ProductID] < order.Lines[i].Quantity {
			return false, nil
		}
	}
	return true, nil
}

// processedQuantities суммирует processed-возвраты заказа по товарам.
func processedQuantities(tx domain.Tx, orderID string) (map[string]int32, error) {
	returnsList, err := tx.Returns().ListByOrder(orderID)
	if err != nil {
		return nil, err
	}
	quantities := make(map[string]int32, len(returnsList))
	for i := range returnsList {
		if returnsList[i].Status == domain.ReturnStatusProcessed {
			quantities[returnsList[i].ProductID] += returnsList[i].ReturnQuantity
		}
	}
	return quantities, nil
}

func returnAuditValues(r domain.ProductReturn) map[string]any {
	return map[string]any{
		"order_id":        r.OrderID,
		"product_id":      r.ProductID,
		"return_quantity": r.ReturnQuantity,
		"refund_amount":   r.RefundAmount.String(),
		"status":          r.Status,
		"restock":         r.Restock,
	}
}

func enqueueReturnEvent(tx domain.Tx, r domain.ProductReturn, orderReturned bool) error {
	payload, err := json.Marshal(map[string]any{
		"return_id":       r.ID,
		"order_id":        r.OrderID,
		"product_id":      r.ProductID,
		"return_quantity": r.ReturnQuantity,
		"refund_amount":   r.RefundAmount.String(),
		"restock":         r.Restock,
		"order_returned":  orderReturned,
		"occurred_at":     time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal return.processed payload: %w", err)
	}

	_, err = tx.Outbox().Enqueue(domain.OutboxMessage{
		AggregateType: "return",
		AggregateID:   r.ID,
		EventType:     "return.processed",
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue return.processed: %w", err)
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrReturnNotAllowed):
		return "return_not_allowed"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsValidationError(err):
		return "validation"
	case domain.IsBusinessError(err):
		return "business_rule"
	default:
		return "internal"
	}
}
