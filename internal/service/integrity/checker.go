// Package integrity выполняет batch-проверку инвариантов хранимого
// состояния: осиротевшие позиции, расхождения агрегатов, отрицательные
// остатки, несогласованный ledger. Находки публикуются как отчёт; в
// repair-режиме исправимые нарушения чинятся с записью в аудит.
package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/metrics"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
)

// Имена проверок. Используются в отчёте и как метка метрики.
const (
	CheckOrphanedLines      = "orphaned_lines"
	CheckOrdersWithoutLines = "orders_without_lines"
	CheckNegativeStock      = "negative_stock"
	CheckMissingCategory    = "missing_category"
	CheckSubtotalMismatch   = "subtotal_mismatch"
	CheckLedgerMismatch     = "ledger_mismatch"
	CheckLowStock           = "low_stock"
)

// Severity — важность находки.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Расхождения денежных агрегатов меньше одной копейки не считаются
// нарушением.
var moneyEpsilon = decimal.RequireFromString("0.01")

// Finding — одна находка проверки.
type Finding struct {
	Check       string
	Severity    Severity
	Entity      string
	Description string
	Count       int
}

// Report — результат одного прогона проверок.
type Report struct {
	CheckedAt time.Time
	Findings  []Finding
	Repaired  int
}

// AuditWriter записывает repair-события в журнал аудита.
type AuditWriter interface {
	RecordRepair(tx domain.Tx, entity, primaryKey string, oldValues, newValues any) error
}

// Checker выполняет прогоны integrity-проверок.
type Checker struct {
	store   domain.Store
	catalog domain.Catalog
	recalc  *orders.Recalculator
	ledger  *ledger.Ledger
	audit   AuditWriter
	logger  *log.Entry
	metrics *metrics.FulfillmentMetrics
}

// New создаёт checker с метриками.
func New(store domain.Store, catalog domain.Catalog, recalc *orders.Recalculator, stockLedger *ledger.Ledger, auditTrail AuditWriter, logger *log.Entry) *Checker {
	checker := NewWithoutMetrics(store, catalog, recalc, stockLedger, auditTrail, logger)
	checker.metrics = metrics.NewFulfillmentMetrics()
	return checker
}

// NewWithoutMetrics создаёт checker без метрик (для тестов).
func NewWithoutMetrics(store domain.Store, catalog domain.Catalog, recalc *orders.Recalculator, stockLedger *ledger.Ledger, auditTrail AuditWriter, logger *log.Entry) *Checker {
	if logger == nil {
		logger = log.WithField("component", "integrity-checker")
	}
	return &Checker{
		store:   store,
		catalog: catalog,
		recalc:  recalc,
		ledger:  stockLedger,
		audit:   auditTrail,
		logger:  logger,
	}
}

// Run выполняет все проверки над согласованным снимком состояния.
// При repair исправимые находки (агрегаты заказов, отрицательный остаток)
// чинятся в той же транзакции, каждое исправление попадает в аудит.
func (c *Checker) Run(ctx context.Context, repair bool) (Report, error) {
	report := Report{CheckedAt: time.Now().UTC()}

	err := c.store.WithinTx(ctx, func(tx domain.Tx) error {
		ordersList, err := tx.Orders().List()
		if err != nil {
			return err
		}
		lines, err := tx.Orders().ListLines()
		if err != nil {
			return err
		}
		products, err := tx.Products().List()
		if err != nil {
			return err
		}
		ledgerEntries, err := tx.Ledger().List()
		if err != nil {
			return err
		}

		c.checkOrphanedLines(&report, ordersList, lines)
		c.checkOrdersWithoutLines(&report, ordersList)
		if err := c.checkNegativeStock(&report, tx, products, repair); err != nil {
			return err
		}
		if err := c.checkMissingCategories(&report, products); err != nil {
			return err
		}
		if err := c.checkOrderTotals(&report, tx, ordersList, repair); err != nil {
			return err
		}
		c.checkLedgerConsistency(&report, ledgerEntries)
		c.checkLowStock(&report, products)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	if c.metrics != nil {
		for _, finding := range report.Findings {
			c.metrics.RecordIntegrityFinding(finding.Check, finding.Count)
		}
	}

	c.logger.WithFields(log.Fields{
		"findings": len(report.Findings),
		"repaired": report.Repaired,
		"repair":   repair,
	}).Info("integrity check completed")
	return report, nil
}

func (c *Checker) checkOrphanedLines(report *Report, ordersList []domain.Order, lines []domain.OrderLine) {
	known := make(map[string]struct{}, len(ordersList))
	for i := range ordersList {
		known[ordersList[i].ID] = struct{}{}
	}

	orphans := 0
	for i := range lines {
		if _, ok := known[lines[i].OrderID]; !ok {
			orphans++
		}
	}
	report.add(Finding{
		Check:       CheckOrphanedLines,
		Severity:    SeverityCritical,
		Entity:      "order_lines",
		Description: "order lines referencing a missing parent order",
		Count:       orphans,
	})
}

func (c *Checker) checkOrdersWithoutLines(report *Report, ordersList []domain.Order) {
	count := 0
	for i := range ordersList {
		if len(ordersList[i].Lines) == 0 && ordersList[i].Status != domain.OrderStatusCancelled {
			count++
		}
	}
	report.add(Finding{
		Check:       CheckOrdersWithoutLines,
		Severity:    SeverityError,
		Entity:      "orders",
		Description: "non-cancelled orders without any lines",
		Count:       count,
	})
}

func (c *Checker) checkNegativeStock(report *Report, tx domain.Tx, products []domain.Product, repair bool) error {
	count := 0
	for i := range products {
		if products[i].StockQuantity >= 0 {
			continue
		}
		count++

		if !repair {
			continue
		}
		// Отрицательный остаток поднимается до нуля через ledger, чтобы
		// исправление само не нарушило инвариант журнала.
		if _, err := c.ledger.Adjust(tx, products[i].ID, -products[i].StockQuantity, "integrity-repair"); err != nil {
			return fmt.Errorf("repair negative stock for %s: %w", products[i].ID, err)
		}
		err := c.audit.RecordRepair(tx, "products", products[i].ID,
			map[string]any{"stock_quantity": products[i].StockQuantity},
			map[string]any{"stock_quantity": 0})
		if err != nil {
			return err
		}
		report.Repaired++
		if c.metrics != nil {
			c.metrics.RecordIntegrityRepair()
		}
	}

	report.add(Finding{
		Check:       CheckNegativeStock,
		Severity:    SeverityCritical,
		Entity:      "products",
		Description: "products with negative stock quantity",
		Count:       count,
	})
	return nil
}

func (c *Checker) checkMissingCategories(report *Report, products []domain.Product) error {
	count := 0
	for i := range products {
		if products[i].CategoryID == "" {
			count++
			continue
		}
		exists, err := c.catalog.CategoryExists(products[i].CategoryID)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if !exists {
			count++
		}
	}
	report.add(Finding{
		Check:       CheckMissingCategory,
		Severity:    SeverityError,
		Entity:      "products",
		Description: "products referencing a missing category",
		Count:       count,
	})
	return nil
}

func (c *Checker) checkOrderTotals(report *Report, tx domain.Tx, ordersList []domain.Order, repair bool) error {
	count := 0
	for i := range ordersList {
		order := ordersList[i]
		if len(order.Lines) == 0 {
			continue
		}

		subtotal := decimal.Zero
		for j := range order.Lines {
			subtotal = subtotal.Add(order.Lines[j].LineTotal)
		}
		expectedTotal := subtotal.Add(order.Tax).Add(order.Shipping).Sub(order.Discount)

		subtotalDrift := order.Subtotal.Sub(subtotal).Abs()
		totalDrift := order.Total.Sub(expectedTotal).Abs()
		if subtotalDrift.LessThanOrEqual(moneyEpsilon) && totalDrift.LessThanOrEqual(moneyEpsilon) {
			continue
		}
		count++

		if !repair {
			continue
		}
		fixed, err := c.recalc.Recalculate(tx, order.ID)
		if err != nil {
			return fmt.Errorf("repair totals for %s: %w", order.ID, err)
		}
		err = c.audit.RecordRepair(tx, "orders", order.ID,
			map[string]any{"subtotal": order.Subtotal.String(), "total": order.Total.String()},
			map[string]any{"subtotal": fixed.Subtotal.String(), "total": fixed.Total.String()})
		if err != nil {
			return err
		}
		report.Repaired++
		if c.metrics != nil {
			c.metrics.RecordIntegrityRepair()
		}
	}

	report.add(Finding{
		Check:       CheckSubtotalMismatch,
		Severity:    SeverityError,
		Entity:      "orders",
		Description: "orders whose stored totals disagree with their lines",
		Count:       count,
	})
	return nil
}

func (c *Checker) checkLedgerConsistency(report *Report, entries []domain.InventoryTransaction) {
	count := 0
	for i := range entries {
		if entries[i].PreviousStock+entries[i].QuantityDelta != entries[i].NewStock {
			count++
		}
	}
	report.add(Finding{
		Check:       CheckLedgerMismatch,
		Severity:    SeverityCritical,
		Entity:      "inventory_transactions",
		Description: "ledger entries where previous_stock+delta does not match new_stock",
		Count:       count,
	})
}

func (c *Checker) checkLowStock(report *Report, products []domain.Product) {
	count := 0
	for i := range products {
		if products[i].IsActive && products[i].StockQuantity >= 0 && products[i].LowStock() {
			count++
		}
	}
	report.add(Finding{
		Check:       CheckLowStock,
		Severity:    SeverityWarning,
		Entity:      "products",
		Description: "active products at or below their reorder level",
		Count:       count,
	})
}

// add записывает находку только при ненулевом счётчике.
func (r *Report) add(finding Finding) {
	if finding.Count == 0 {
		return
	}
	r.Findings = append(r.Findings, finding)
}

// FindingFor возвращает находку по имени проверки, если она есть.
func (r *Report) FindingFor(check string) (Finding, bool) {
	for _, finding := range r.Findings {
		if finding.Check == check {
			return finding, true
		}
	}
	return Finding{}, false
}
