package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/directory"
)

// NOTE: справочники клиентов, адресов и каталога — mock-реализации для
// разработки и демо. В production их заменяют клиенты внешних сервисов.
type directories struct {
	customers domain.CustomerDirectory
	addresses domain.AddressDirectory
	catalog   domain.Catalog
}

func newDemoDirectories() directories {
	customers := directory.NewMockCustomerDirectory()
	customers.AddCustomer("customer-1", true, 1200, 8)
	customers.AddCustomer("customer-2", true, 150, 2)

	addresses := directory.NewMockAddressDirectory()
	addresses.AddAddress("address-1", "customer-1", true)
	addresses.AddAddress("address-2", "customer-2", true)

	catalog := directory.NewMockCatalog()
	catalog.AddProduct(domain.ProductInfo{
		ID: "product-1", Price: 12.50, IsActive: true, CategoryID: "category-1",
	})
	catalog.AddProduct(domain.ProductInfo{
		ID: "product-2", Price: 49.90, IsActive: true, CategoryID: "category-1",
	})

	return directories{customers: customers, addresses: addresses, catalog: catalog}
}

// seedDemoProducts создаёт складские записи под демо-каталог.
// Вызывается только для in-memory хранилища: пустой склад делает
// оформление заказов невозможным.
func seedDemoProducts(ctx context.Context, store domain.Store) error {
	now := time.Now().UTC()
	products := []domain.Product{
		{
			ID: "product-1", CategoryID: "category-1",
			Price:         decimal.RequireFromString("12.50"),
			StockQuantity: 100, ReorderLevel: 10, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "product-2", CategoryID: "category-1",
			Price:         decimal.RequireFromString("49.90"),
			StockQuantity: 25, ReorderLevel: 5, IsActive: true,
			CreatedAt: now, UpdatedAt: now,
		},
	}

	return store.WithinTx(ctx, func(tx domain.Tx) error {
		for _, product := range products {
			if err := tx.Products().Create(product); err != nil {
				return err
			}
		}
		return nil
	})
}
