package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики операций fulfillment-ядра.
type FulfillmentMetrics struct {
	// Счётчики заказов и возвратов
	ordersProcessed  prometheus.Counter
	ordersRejected   *prometheus.CounterVec
	returnsProcessed prometheus.Counter
	returnsRejected  *prometheus.CounterVec

	// Счётчики движений остатков
	stockReservations     prometheus.Counter
	stockReservationFails prometheus.Counter
	stockRestocks         prometheus.Counter
	stockAdjustments      prometheus.Counter

	// Гистограммы времени выполнения
	orderDuration  prometheus.Histogram
	returnDuration prometheus.Histogram

	// Integrity-проверки
	integrityFindings *prometheus.CounterVec
	integrityRepairs  prometheus.Counter

	// Журналы
	auditEntries prometheus.Counter
	outboxEvents prometheus.Counter
}

// NewFulfillmentMetrics создаёт метрики с default registerer.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return newFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		ordersProcessed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_orders_processed_total",
			Help: "Total number of orders committed successfully",
		}),
		ordersRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_orders_rejected_total",
			Help: "Total number of rejected orders grouped by reason",
		}, []string{"reason"}),
		returnsProcessed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_returns_processed_total",
			Help: "Total number of returns processed successfully",
		}),
		returnsRejected: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_returns_rejected_total",
			Help: "Total number of rejected returns grouped by reason",
		}, []string{"reason"}),
		stockReservations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_stock_reservations_total",
			Help: "Total number of successful stock reservations",
		}),
		stockReservationFails: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_stock_reservation_failures_total",
			Help: "Total number of reservations rejected for insufficient stock",
		}),
		stockRestocks: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_stock_restocks_total",
			Help: "Total number of restock ledger entries",
		}),
		stockAdjustments: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_stock_adjustments_total",
			Help: "Total number of manual stock adjustments",
		}),
		orderDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fulfillment_order_duration_seconds",
			Help:    "Duration of order processing in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		returnDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "fulfillment_return_duration_seconds",
			Help:    "Duration of return processing in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		integrityFindings: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "fulfillment_integrity_findings_total",
			Help: "Total number of integrity findings grouped by check",
		}, []string{"check"}),
		integrityRepairs: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_integrity_repairs_total",
			Help: "Total number of integrity repairs applied",
		}),
		auditEntries: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_audit_entries_total",
			Help: "Total number of audit entries recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "fulfillment_outbox_events_total",
			Help: "Total number of events enqueued to the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderProcessed увеличивает счётчик успешных заказов.
func (m *FulfillmentMetrics) RecordOrderProcessed() {
	m.ordersProcessed.Inc()
}

// RecordOrderRejected увеличивает счётчик отклонённых заказов по причине.
func (m *FulfillmentMetrics) RecordOrderRejected(reason string) {
	m.ordersRejected.WithLabelValues(reason).Inc()
}

// RecordReturnProcessed увеличивает счётчик успешных возвратов.
func (m *FulfillmentMetrics) RecordReturnProcessed() {
	m.returnsProcessed.Inc()
}

// RecordReturnRejected увеличивает счётчик отклонённых возвратов по причине.
func (m *FulfillmentMetrics) RecordReturnRejected(reason string) {
	m.returnsRejected.WithLabelValues(reason).Inc()
}

// RecordReservation увеличивает счётчик успешных резервирований.
func (m *FulfillmentMetrics) RecordReservation() {
	m.stockReservations.Inc()
}

// RecordReservationFailure увеличивает счётчик отказов по остатку.
func (m *FulfillmentMetrics) RecordReservationFailure() {
	m.stockReservationFails.Inc()
}

// RecordRestock увеличивает счётчик пополнений остатка.
func (m *FulfillmentMetrics) RecordRestock() {
	m.stockRestocks.Inc()
}

// RecordAdjustment увеличивает счётчик ручных корректировок.
func (m *FulfillmentMetrics) RecordAdjustment() {
	m.stockAdjustments.Inc()
}

// RecordOrderDuration записывает время оформления заказа.
func (m *FulfillmentMetrics) RecordOrderDuration(duration time.Duration) {
	m.orderDuration.Observe(duration.Seconds())
}

// RecordReturnDuration записывает время обработки возврата.
func (m *FulfillmentMetrics) RecordReturnDuration(duration time.Duration) {
	m.returnDuration.Observe(duration.Seconds())
}

// RecordIntegrityFinding увеличивает счётчик находок по имени проверки.
func (m *FulfillmentMetrics) RecordIntegrityFinding(check string, count int) {
	if count <= 0 {
		return
	}
	m.integrityFindings.WithLabelValues(check).Add(float64(count))
}

// RecordIntegrityRepair увеличивает счётчик применённых repair-операций.
func (m *FulfillmentMetrics) RecordIntegrityRepair() {
	m.integrityRepairs.Inc()
}

// RecordAuditEntry увеличивает счётчик записей аудита.
func (m *FulfillmentMetrics) RecordAuditEntry() {
	m.auditEntries.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *FulfillmentMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
