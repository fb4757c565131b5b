package domain_test

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func makeLedgerEntry() domain.InventoryTransaction {
	return domain.InventoryTransaction{
		ID:            "tx-1",
		ProductID:     "product-1",
		Type:          domain.TransactionTypeSale,
		QuantityDelta: -3,
		PreviousStock: 5,
		NewStock:      2,
		ReferenceID:   "order-1",
		ReferenceType: "order",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInventoryTransactionValidate_Ok(t *testing.T) {
	entry := makeLedgerEntry()
	if errs := entry.Validate(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestInventoryTransactionValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(e *domain.InventoryTransaction)
	}{
		{
			name: "no product",
			mut: func(e *domain.InventoryTransaction) {
				e.ProductID = ""
			},
		},
		{
			name: "bad type",
			mut: func(e *domain.InventoryTransaction) {
				e.Type = "refuel"
			},
		},
		{
			name: "delta mismatch",
			mut: func(e *domain.InventoryTransaction) {
				e.NewStock = 4
			},
		},
		{
			name: "negative new stock",
			mut: func(e *domain.InventoryTransaction) {
				e.PreviousStock = 1
				e.QuantityDelta = -3
				e.NewStock = -2
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry := makeLedgerEntry()
			tc.mut(&entry)
			if len(entry.Validate()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestProductLowStock(t *testing.T) {
	p := domain.Product{StockQuantity: 3, ReorderLevel: 5}
	if !p.LowStock() {
		t.Fatal("expected low stock when quantity below reorder level")
	}

	p.StockQuantity = 6
	if p.LowStock() {
		t.Fatal("did not expect low stock when quantity above reorder level")
	}
}

func TestTransactionTypeValid(t *testing.T) {
	valid := []domain.TransactionType{
		domain.TransactionTypeSale,
		domain.TransactionTypeReturn,
		domain.TransactionTypeAdjustment,
		domain.TransactionTypeRestock,
		domain.TransactionTypeDamage,
		domain.TransactionTypeTransfer,
	}
	for _, tt := range valid {
		if !tt.Valid() {
			t.Fatalf("expected %s to be valid", tt)
		}
	}
	if domain.TransactionType("teleport").Valid() {
		t.Fatal("unexpected valid result for unknown type")
	}
}
