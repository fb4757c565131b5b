package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewFulfillmentMetrics(t *testing.T) {
	metrics := newFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("metrics should not be nil")
	}
	if metrics.ordersProcessed == nil {
		t.Error("ordersProcessed counter should not be nil")
	}
	if metrics.ordersRejected == nil {
		t.Error("ordersRejected counter vec should not be nil")
	}
	if metrics.returnsProcessed == nil {
		t.Error("returnsProcessed counter should not be nil")
	}
	if metrics.stockReservations == nil {
		t.Error("stockReservations counter should not be nil")
	}
	if metrics.orderDuration == nil {
		t.Error("orderDuration histogram should not be nil")
	}
	if metrics.integrityFindings == nil {
		t.Error("integrityFindings counter vec should not be nil")
	}
	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
}

func TestRegisterToleratesAlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newFulfillmentMetricsWithRegisterer(reg)
	second := newFulfillmentMetricsWithRegisterer(reg)

	// Повторная регистрация возвращает уже существующие коллекторы.
	if first.ordersProcessed != second.ordersProcessed {
		t.Error("expected the same ordersProcessed collector on re-registration")
	}
	if first.ordersRejected != second.ordersRejected {
		t.Error("expected the same ordersRejected collector on re-registration")
	}
}

func TestRecordOrderCounters(t *testing.T) {
	metrics := newFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderProcessed()
	metrics.RecordOrderProcessed()
	metrics.RecordOrderRejected("insufficient_stock")

	metric := &dto.Metric{}
	if err := metrics.ordersProcessed.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}

	rejected := &dto.Metric{}
	if err := metrics.ordersRejected.WithLabelValues("insufficient_stock").Write(rejected); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if rejected.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", rejected.Counter.GetValue())
	}
}

func TestRecordStockCounters(t *testing.T) {
	metrics := newFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordReservation()
	metrics.RecordReservationFailure()
	metrics.RecordRestock()
	metrics.RecordAdjustment()

	for name, counter := range map[string]prometheus.Counter{
		"reservations": metrics.stockReservations,
		"failures":     metrics.stockReservationFails,
		"restocks":     metrics.stockRestocks,
		"adjustments":  metrics.stockAdjustments,
	} {
		metric := &dto.Metric{}
		if err := counter.Write(metric); err != nil {
			t.Fatalf("failed to write %s metric: %v", name, err)
		}
		if metric.Counter.GetValue() != 1.0 {
			t.Errorf("expected %s value 1.0, got %f", name, metric.Counter.GetValue())
		}
	}
}

func TestRecordDurations(t *testing.T) {
	metrics := newFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOrderDuration(150 * time.Millisecond)
	metrics.RecordReturnDuration(25 * time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.orderDuration.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 order duration sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordIntegrityFinding(t *testing.T) {
	metrics := newFulfillmentMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordIntegrityFinding("orphaned_lines", 3)
	metrics.RecordIntegrityFinding("orphaned_lines", 0) // не учитывается

	metric := &dto.Metric{}
	if err := metrics.integrityFindings.WithLabelValues("orphaned_lines").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 3.0 {
		t.Errorf("expected counter value 3.0, got %f", metric.Counter.GetValue())
	}
}
