package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// Recalculator поддерживает денежный инвариант заказа:
// subtotal = Σ lineTotal, total = subtotal + tax + shipping − discount.
// Пересчёт вызывается явно владеющей операцией при изменении набора
// позиций; скрытых хуков нет.
type Recalculator struct {
	logger *log.Entry
}

// NewRecalculator создаёт пересчёт денежных агрегатов.
func NewRecalculator(logger *log.Entry) *Recalculator {
	if logger == nil {
		logger = log.WithField("component", "totals-recalculator")
	}
	return &Recalculator{logger: logger}
}

// Recalculate пересчитывает subtotal и total заказа по его позициям.
// Сохранённый tax используется как есть: нулевой налог — осознанный
// выбор вызывающего, подстановка ставки по умолчанию не выполняется.
func (r *Recalculator) Recalculate(tx domain.Tx, orderID string) (domain.Order, error) {
	order, err := tx.Orders().Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	subtotal := decimal.Zero
	for i := range order.Lines {
		subtotal = subtotal.Add(order.Lines[i].LineTotal)
	}
	total := subtotal.Add(order.Tax).Add(order.Shipping).Sub(order.Discount)

	if order.Subtotal.Equal(subtotal) && order.Total.Equal(total) {
		return order, nil
	}

	if err := tx.Orders().UpdateTotals(orderID, subtotal, total); err != nil {
		return domain.Order{}, fmt.Errorf("update totals: %w", err)
	}

	r.logger.WithFields(log.Fields{
		"order_id":     orderID,
		"old_subtotal": order.Subtotal,
		"new_subtotal": subtotal,
		"old_total":    order.Total,
		"new_total":    total,
	}).Info("order totals recalculated")

	order.Subtotal = subtotal
	order.Total = total
	return order, nil
}
