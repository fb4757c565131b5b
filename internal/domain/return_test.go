package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func makeReturn() domain.ProductReturn {
	now := time.Now().UTC()
	return domain.ProductReturn{
		ID:             "return-1",
		OrderID:        "order-1",
		ProductID:      "product-1",
		CustomerID:     "customer-1",
		ReturnQuantity: 1,
		RefundAmount:   decimal.RequireFromString("10.00"),
		Reason:         "damaged on arrival",
		Status:         domain.ReturnStatusApproved,
		Restock:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestProductReturnValidate_Ok(t *testing.T) {
	r := makeReturn()
	if errs := r.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestProductReturnValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(r *domain.ProductReturn)
	}{
		{
			name: "no order",
			mut: func(r *domain.ProductReturn) {
				r.OrderID = ""
			},
		},
		{
			name: "no product",
			mut: func(r *domain.ProductReturn) {
				r.ProductID = ""
			},
		},
		{
			name: "zero quantity",
			mut: func(r *domain.ProductReturn) {
				r.ReturnQuantity = 0
			},
		},
		{
			name: "negative refund",
			mut: func(r *domain.ProductReturn) {
				r.RefundAmount = decimal.NewFromInt(-1)
			},
		},
		{
			name: "bad status",
			mut: func(r *domain.ProductReturn) {
				r.Status = "escalated"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := makeReturn()
			tc.mut(&r)
			if len(r.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestIsBusinessError(t *testing.T) {
	if !domain.IsBusinessError(domain.ErrInsufficientStock) {
		t.Fatal("insufficient stock must be a business error")
	}
	if domain.IsBusinessError(domain.ErrPersistence) {
		t.Fatal("persistence failure must not be a business error")
	}
}
