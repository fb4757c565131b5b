package directory

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

func TestCustomerDirectoryLookup(t *testing.T) {
	customers := NewMockCustomerDirectory()
	customers.AddCustomer("customer-1", true, 6000, 10)
	customers.AddCustomer("customer-2", false, 0, 0)

	active, err := customers.IsActive("customer-1")
	if err != nil || !active {
		t.Fatalf("expected active customer, got active=%v err=%v", active, err)
	}

	active, err = customers.IsActive("customer-2")
	if err != nil || active {
		t.Fatalf("expected inactive customer, got active=%v err=%v", active, err)
	}

	if _, err := customers.IsActive("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	history, err := customers.TierHistory("customer-1")
	if err != nil {
		t.Fatalf("tier history: %v", err)
	}
	if history.TotalSpent != 6000 || history.OrderCount != 10 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAddressDirectoryResolve(t *testing.T) {
	addresses := NewMockAddressDirectory()
	addresses.AddAddress("address-1", "customer-1", true)

	ref, err := addresses.Resolve("address-1", "customer-1")
	if err != nil || !ref.IsActive {
		t.Fatalf("expected active address, got ref=%+v err=%v", ref, err)
	}

	// Адрес чужого клиента неотличим от отсутствующего.
	if _, err := addresses.Resolve("address-1", "customer-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for foreign customer, got %v", err)
	}
}

func TestCatalogLookup(t *testing.T) {
	catalog := NewMockCatalog()
	catalog.AddProduct(domain.ProductInfo{
		ID: "product-1", Price: 10, IsActive: true,
		CategoryID: "category-1", Promotional: true,
	})

	info, err := catalog.ProductInfo("product-1")
	if err != nil {
		t.Fatalf("product info: %v", err)
	}
	if !info.Promotional || info.CategoryID != "category-1" {
		t.Fatalf("unexpected info: %+v", info)
	}

	exists, err := catalog.CategoryExists("category-1")
	if err != nil || !exists {
		t.Fatalf("expected category to exist, got %v err=%v", exists, err)
	}
	exists, _ = catalog.CategoryExists("missing")
	if exists {
		t.Fatal("missing category reported as existing")
	}
}
