package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// helper для создания согласованного заказа с двумя позициями.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	lines := []domain.OrderLine{
		{
			ID:        "line-1",
			OrderID:   "order-1",
			ProductID: "product-1",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("10.00"),
			Discount:  decimal.Zero,
			LineTotal: decimal.RequireFromString("20.00"),
			CreatedAt: now,
		},
		{
			ID:        "line-2",
			OrderID:   "order-1",
			ProductID: "product-2",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("5.00"),
			Discount:  decimal.Zero,
			LineTotal: decimal.RequireFromString("5.00"),
			CreatedAt: now,
		},
	}
	subtotal := decimal.RequireFromString("25.00")
	tax := decimal.RequireFromString("2.1875")
	shipping := decimal.RequireFromString("9.99")

	return domain.Order{
		ID:            "order-1",
		CustomerID:    "customer-1",
		OrderDate:     now,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      subtotal,
		Tax:           tax,
		Shipping:      shipping,
		Discount:      decimal.Zero,
		Total:         subtotal.Add(tax).Add(shipping),
		Lines:         lines,
		Version:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
	if !order.Total.Equal(decimal.RequireFromString("37.1775")) {
		t.Fatalf("unexpected total: %s", order.Total)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
		},
		{
			name: "no lines",
			mut: func(o *domain.Order) {
				o.Lines = nil
			},
		},
		{
			name: "negative discount component",
			mut: func(o *domain.Order) {
				o.Discount = decimal.NewFromInt(-1)
			},
		},
		{
			name: "line qty invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].Quantity = 0
			},
		},
		{
			name: "line price invalid",
			mut: func(o *domain.Order) {
				o.Lines[0].UnitPrice = decimal.Zero
			},
		},
		{
			name: "line discount above gross",
			mut: func(o *domain.Order) {
				o.Lines[0].Discount = decimal.RequireFromString("20.01")
			},
		},
		{
			name: "subtotal mismatch",
			mut: func(o *domain.Order) {
				o.Subtotal = decimal.RequireFromString("99.00")
			},
		},
		{
			name: "total mismatch",
			mut: func(o *domain.Order) {
				o.Total = decimal.RequireFromString("1.00")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    domain.OrderStatus
		to      domain.OrderStatus
		allowed bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusProcessing, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusProcessing, domain.OrderStatusShipped, true},
		{domain.OrderStatusProcessing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusShipped, domain.OrderStatusDelivered, true},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusShipped, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPending, false},
		// returned выставляет только обработчик возвратов.
		{domain.OrderStatusDelivered, domain.OrderStatusReturned, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderLineForProduct(t *testing.T) {
	order := makeOrder()

	if line := order.LineForProduct("product-2"); line == nil || line.ID != "line-2" {
		t.Fatalf("expected line-2, got %+v", line)
	}
	if line := order.LineForProduct("missing"); line != nil {
		t.Fatalf("expected nil for missing product, got %+v", line)
	}
}
