package domain

import "time"

// CustomerDirectory — внешний справочник клиентов (read-only).
type CustomerDirectory interface {
	// IsActive сообщает, существует ли клиент и активен ли он.
	IsActive(customerID string) (bool, error)
	// TierHistory возвращает накопленную историю покупок для расчёта tier.
	TierHistory(customerID string) (TierHistory, error)
}

// TierHistory — агрегат покупок клиента из внешнего справочника.
type TierHistory struct {
	TotalSpent float64
	OrderCount int
}

// AddressRef — сведения об адресе из внешнего справочника.
type AddressRef struct {
	ID       string
	IsActive bool
}

// AddressDirectory — внешний справочник адресов (read-only).
type AddressDirectory interface {
	// Resolve возвращает адрес клиента или ErrNotFound,
	// если адрес отсутствует либо принадлежит другому клиенту.
	Resolve(addressID, customerID string) (AddressRef, error)
}

// ProductInfo — каталожные атрибуты товара.
type ProductInfo struct {
	ID         string
	Price      float64
	IsActive   bool
	CategoryID string
	// Promotional отмечает товары промо-категорий для скидочных правил.
	Promotional bool
}

// Catalog — внешний каталог товаров (read-only).
type Catalog interface {
	// ProductInfo возвращает атрибуты товара или ErrNotFound.
	ProductInfo(productID string) (ProductInfo, error)
	// CategoryExists сообщает, существует ли категория.
	CategoryExists(categoryID string) (bool, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
