package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderReturned      EventType = "order.returned"

	// Return события
	EventTypeReturnProcessed EventType = "return.processed"

	// Stock события
	EventTypeStockReserved  EventType = "stock.reserved"
	EventTypeStockRestocked EventType = "stock.restocked"
	EventTypeStockAdjusted  EventType = "stock.adjusted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "fulfillment.order.events"
	TopicReturnEvents    = "fulfillment.return.events"
	TopicStockEvents     = "fulfillment.stock.events"
	TopicDeadLetterQueue = "fulfillment.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Status     string                 `json:"status"`
	Total      string                 `json:"total,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ReturnEvent представляет событие возврата
type ReturnEvent struct {
	EventType      EventType              `json:"event_type"`
	ReturnID       string                 `json:"return_id"`
	OrderID        string                 `json:"order_id"`
	ProductID      string                 `json:"product_id"`
	ReturnQuantity int32                  `json:"return_quantity"`
	RefundAmount   string                 `json:"refund_amount"`
	Timestamp      time.Time              `json:"timestamp"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет событие движения остатка
type StockEvent struct {
	EventType EventType `json:"event_type"`
	ProductID string    `json:"product_id"`
	Delta     int32     `json:"delta"`
	NewStock  int32     `json:"new_stock"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// NewReturnEvent создает новое событие возврата
func NewReturnEvent(returnID, orderID, productID string, quantity int32, refundAmount string) *ReturnEvent {
	return &ReturnEvent{
		EventType:      EventTypeReturnProcessed,
		ReturnID:       returnID,
		OrderID:        orderID,
		ProductID:      productID,
		ReturnQuantity: quantity,
		RefundAmount:   refundAmount,
		Timestamp:      time.Now(),
	}
}
