package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/audit"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/directory"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/integrity"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/ledger"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/orders"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/pricing"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/returns"
	"github.com/vladislavdragonenkov/fulfillment/internal/storage/memory"
)

// FulfillmentLifecycleTestSuite прогоняет полный жизненный цикл:
// оформление, доставку, возвраты и integrity-проверки поверх
// in-memory хранилища.
type FulfillmentLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	customers *directory.MockCustomerDirectory
	addresses *directory.MockAddressDirectory
	catalog   *directory.MockCatalog
	ledger    *ledger.Ledger
	orders    *orders.Processor
	returns   *returns.Processor
	recalc    *orders.Recalculator
	checker   *integrity.Checker
}

func (s *FulfillmentLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()

	s.customers = directory.NewMockCustomerDirectory()
	s.customers.AddCustomer("customer-1", true, 1200, 8)
	s.customers.AddCustomer("customer-platinum", true, 12000, 40)

	s.addresses = directory.NewMockAddressDirectory()
	s.addresses.AddAddress("address-1", "customer-1", true)

	s.catalog = directory.NewMockCatalog()
	s.catalog.AddProduct(domain.ProductInfo{
		ID: "product-1", Price: 10.00, IsActive: true, CategoryID: "category-1",
	})
	s.catalog.AddProduct(domain.ProductInfo{
		ID: "product-2", Price: 5.00, IsActive: true, CategoryID: "category-1",
	})
	s.catalog.AddProduct(domain.ProductInfo{
		ID: "product-promo", Price: 20.00, IsActive: true, CategoryID: "category-promo", Promotional: true,
	})

	s.ledger = ledger.NewWithoutMetrics(logger)
	auditTrail := audit.NewWithoutMetrics(logger, "integration-test")
	s.orders = orders.NewWithoutMetrics(s.store, s.customers, s.addresses, s.catalog, s.ledger, auditTrail, logger)
	s.returns = returns.NewWithoutMetrics(s.store, s.ledger, auditTrail, logger)
	s.recalc = orders.NewRecalculator(logger)
	s.checker = integrity.NewWithoutMetrics(s.store, s.catalog, s.recalc, s.ledger, auditTrail, logger)

	s.seedProduct("product-1", 20)
	s.seedProduct("product-2", 20)
	s.seedProduct("product-promo", 20)
}

func (s *FulfillmentLifecycleTestSuite) seedProduct(id string, stock int32) {
	s.T().Helper()

	err := s.store.WithinTx(context.Background(), func(tx domain.Tx) error {
		info, err := s.catalog.ProductInfo(id)
		if err != nil {
			return err
		}
		return tx.Products().Create(domain.Product{
			ID:            id,
			CategoryID:    info.CategoryID,
			Price:         decimal.NewFromFloat(info.Price),
			StockQuantity: stock,
			ReorderLevel:  2,
			IsActive:      true,
		})
	})
	require.NoError(s.T(), err)
}

func (s *FulfillmentLifecycleTestSuite) stockOf(id string) int32 {
	s.T().Helper()

	var stock int32
	err := s.store.WithinTx(context.Background(), func(tx domain.Tx) error {
		product, err := tx.Products().Get(id)
		if err != nil {
			return err
		}
		stock = product.StockQuantity
		return nil
	})
	require.NoError(s.T(), err)
	return stock
}

func (s *FulfillmentLifecycleTestSuite) deliverOrder(orderID string) {
	s.T().Helper()

	ctx := context.Background()
	for _, status := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		_, err := s.orders.UpdateStatus(ctx, orderID, status, "")
		require.NoError(s.T(), err)
	}
}

func (s *FulfillmentLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	// 1. Оформляем заказ: 2 × 10.00 + 1 × 5.00, налог 8.75%, доставка 9.99.
	order, err := s.orders.ProcessOrder(ctx, orders.OrderRequest{
		CustomerID:        "customer-1",
		ShippingAddressID: "address-1",
		Items: []orders.OrderItem{
			{ProductID: "product-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{ProductID: "product-2", Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
		TaxRate:  decimal.RequireFromString("0.0875"),
		Shipping: decimal.RequireFromString("9.99"),
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusPending, order.Status)
	require.True(s.T(), decimal.RequireFromString("25.00").Equal(order.Subtotal), "subtotal = %s", order.Subtotal)
	require.True(s.T(), decimal.RequireFromString("2.1875").Equal(order.Tax), "tax = %s", order.Tax)
	require.True(s.T(), decimal.RequireFromString("37.1775").Equal(order.Total), "total = %s", order.Total)
	require.Len(s.T(), order.Lines, 2)

	// 2. Остатки зарезервированы, движения записаны в журнал.
	require.EqualValues(s.T(), 18, s.stockOf("product-1"))
	require.EqualValues(s.T(), 19, s.stockOf("product-2"))

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		entries, err := tx.Ledger().ListByProduct("product-1", 0)
		if err != nil {
			return err
		}
		require.Len(s.T(), entries, 1)
		require.Equal(s.T(), domain.TransactionTypeSale, entries[0].Type)
		require.EqualValues(s.T(), -2, entries[0].QuantityDelta)
		require.Equal(s.T(), order.ID, entries[0].ReferenceID)
		return nil
	})
	require.NoError(s.T(), err)

	// 3. Заказ проходит весь путь до delivered.
	s.deliverOrder(order.ID)

	delivered, err := s.orders.Get(ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusDelivered, delivered.Status)
}

// Два конкурентных заказа на один товар: остатка хватает только одному.
func (s *FulfillmentLifecycleTestSuite) TestConcurrentOrdersSingleWinner() {
	ctx := context.Background()
	s.catalog.AddProduct(domain.ProductInfo{
		ID: "product-scarce", Price: 10.00, IsActive: true, CategoryID: "category-1",
	})
	s.seedProduct("product-scarce", 5)

	request := orders.OrderRequest{
		CustomerID: "customer-1",
		Items: []orders.OrderItem{
			{ProductID: "product-scarce", Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
		},
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = s.orders.ProcessOrder(ctx, request)
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(s.T(), err, domain.ErrInsufficientStock)
			insufficient++
		}
	}
	require.Equal(s.T(), 1, succeeded, "exactly one order must win the stock")
	require.Equal(s.T(), 1, insufficient)
	require.EqualValues(s.T(), 2, s.stockOf("product-scarce"))
}

// Частичный возврат оставляет заказ delivered, возврат остатка
// переводит его в returned.
func (s *FulfillmentLifecycleTestSuite) TestPartialThenFullReturn() {
	ctx := context.Background()

	order, err := s.orders.ProcessOrder(ctx, orders.OrderRequest{
		CustomerID: "customer-1",
		Items: []orders.OrderItem{
			{ProductID: "product-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(s.T(), err)
	s.deliverOrder(order.ID)
	require.EqualValues(s.T(), 18, s.stockOf("product-1"))

	// Возврат 1 из 2 единиц: заказ остаётся delivered, остаток растёт.
	firstReturn, err := s.returns.ProcessReturn(ctx, returns.ReturnRequest{
		OrderID:        order.ID,
		ProductID:      "product-1",
		ReturnQuantity: 1,
		Reason:         "defective",
		Restock:        true,
	})
	require.NoError(s.T(), err)
	require.True(s.T(), decimal.RequireFromString("10.00").Equal(firstReturn.RefundAmount),
		"refund = %s", firstReturn.RefundAmount)
	require.EqualValues(s.T(), 19, s.stockOf("product-1"))

	afterPartial, err := s.orders.Get(ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusDelivered, afterPartial.Status)

	// Возврат оставшейся единицы закрывает заказ.
	_, err = s.returns.ProcessReturn(ctx, returns.ReturnRequest{
		OrderID:        order.ID,
		ProductID:      "product-1",
		ReturnQuantity: 1,
		Reason:         "defective",
		Restock:        true,
	})
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 20, s.stockOf("product-1"))

	afterFull, err := s.orders.Get(ctx, order.ID)
	require.NoError(s.T(), err)
	require.Equal(s.T(), domain.OrderStatusReturned, afterFull.Status)
}

// Возврат по отменённому заказу отклоняется без следов в хранилище.
func (s *FulfillmentLifecycleTestSuite) TestReturnAgainstCancelledOrderRejected() {
	ctx := context.Background()

	order, err := s.orders.ProcessOrder(ctx, orders.OrderRequest{
		CustomerID: "customer-1",
		Items: []orders.OrderItem{
			{ProductID: "product-1", Quantity: 1, UnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(s.T(), err)

	_, err = s.orders.UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled, "")
	require.NoError(s.T(), err)
	stockBefore := s.stockOf("product-1")

	_, err = s.returns.ProcessReturn(ctx, returns.ReturnRequest{
		OrderID:        order.ID,
		ProductID:      "product-1",
		ReturnQuantity: 1,
		Restock:        true,
	})
	require.ErrorIs(s.T(), err, domain.ErrReturnNotAllowed)
	require.Equal(s.T(), stockBefore, s.stockOf("product-1"))

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		recorded, err := tx.Returns().ListByOrder(order.ID)
		if err != nil {
			return err
		}
		require.Empty(s.T(), recorded, "rejected return must not be persisted")
		return nil
	})
	require.NoError(s.T(), err)
}

// Платиновый клиент с промо-товаром и объёмной надбавкой: 15% + 5% + 3%.
func (s *FulfillmentLifecycleTestSuite) TestQuoteStacksDiscounts() {
	quote, err := s.orders.Quote(orders.QuoteRequest{
		CustomerID: "customer-platinum",
		ProductID:  "product-promo",
		Quantity:   12,
		WeightLb:   4,
		Zone:       pricing.ZoneRegional,
		Method:     pricing.MethodStandard,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), pricing.TierPlatinum, quote.Tier)
	require.True(s.T(), decimal.RequireFromString("0.23").Equal(quote.DiscountPercent),
		"discount = %s", quote.DiscountPercent)
}

// После штатных операций integrity-проверка не находит нарушений.
func (s *FulfillmentLifecycleTestSuite) TestIntegrityCleanAfterLifecycle() {
	ctx := context.Background()

	order, err := s.orders.ProcessOrder(ctx, orders.OrderRequest{
		CustomerID: "customer-1",
		Items: []orders.OrderItem{
			{ProductID: "product-1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
	})
	require.NoError(s.T(), err)
	s.deliverOrder(order.ID)

	_, err = s.returns.ProcessReturn(ctx, returns.ReturnRequest{
		OrderID:        order.ID,
		ProductID:      "product-1",
		ReturnQuantity: 1,
		Restock:        true,
	})
	require.NoError(s.T(), err)

	report, err := s.checker.Run(ctx, false)
	require.NoError(s.T(), err)

	for _, finding := range report.Findings {
		// Информационные предупреждения о низком остатке допустимы.
		require.Equal(s.T(), integrity.SeverityWarning, finding.Severity,
			"unexpected finding: %+v", finding)
	}
	require.Zero(s.T(), report.Repaired)
}

// Осиротевшая позиция, вставленная мимо процессора, обнаруживается.
func (s *FulfillmentLifecycleTestSuite) TestIntegrityDetectsOrphanedLine() {
	ctx := context.Background()

	s.store.SeedLine(domain.OrderLine{
		ID:        "line-orphan",
		OrderID:   "order-ghost",
		ProductID: "product-1",
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("10.00"),
		LineTotal: decimal.RequireFromString("10.00"),
	})

	report, err := s.checker.Run(ctx, false)
	require.NoError(s.T(), err)

	var found bool
	for _, finding := range report.Findings {
		if finding.Check == integrity.CheckOrphanedLines {
			found = true
		}
	}
	require.True(s.T(), found, "orphaned line not detected: %+v", report.Findings)
}

func TestFulfillmentLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(FulfillmentLifecycleTestSuite))
}
