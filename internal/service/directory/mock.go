// Package directory содержит in-memory реализации внешних справочников
// (клиенты, адреса, каталог). Используются в тестах и локальном запуске;
// в боевом контуре их место занимают клиенты соответствующих сервисов.
package directory

import (
	"sync"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

type customerRecord struct {
	active  bool
	history domain.TierHistory
}

// MockCustomerDirectory — in-memory справочник клиентов.
type MockCustomerDirectory struct {
	mu        sync.RWMutex
	customers map[string]customerRecord
}

// NewMockCustomerDirectory создаёт пустой справочник клиентов.
func NewMockCustomerDirectory() *MockCustomerDirectory {
	return &MockCustomerDirectory{customers: make(map[string]customerRecord)}
}

// AddCustomer регистрирует клиента с историей покупок.
func (d *MockCustomerDirectory) AddCustomer(id string, active bool, totalSpent float64, orderCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customers[id] = customerRecord{
		active:  active,
		history: domain.TierHistory{TotalSpent: totalSpent, OrderCount: orderCount},
	}
}

func (d *MockCustomerDirectory) IsActive(customerID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.customers[customerID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return record.active, nil
}

func (d *MockCustomerDirectory) TierHistory(customerID string) (domain.TierHistory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.customers[customerID]
	if !ok {
		return domain.TierHistory{}, domain.ErrNotFound
	}
	return record.history, nil
}

type addressRecord struct {
	customerID string
	active     bool
}

// MockAddressDirectory — in-memory справочник адресов.
type MockAddressDirectory struct {
	mu        sync.RWMutex
	addresses map[string]addressRecord
}

// NewMockAddressDirectory создаёт пустой справочник адресов.
func NewMockAddressDirectory() *MockAddressDirectory {
	return &MockAddressDirectory{addresses: make(map[string]addressRecord)}
}

// AddAddress регистрирует адрес клиента.
func (d *MockAddressDirectory) AddAddress(id, customerID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[id] = addressRecord{customerID: customerID, active: active}
}

// Resolve возвращает ErrNotFound и для чужого адреса: вызывающий не
// должен отличать "нет адреса" от "адрес другого клиента".
func (d *MockAddressDirectory) Resolve(addressID, customerID string) (domain.AddressRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	record, ok := d.addresses[addressID]
	if !ok || record.customerID != customerID {
		return domain.AddressRef{}, domain.ErrNotFound
	}
	return domain.AddressRef{ID: addressID, IsActive: record.active}, nil
}

// MockCatalog — in-memory каталог товаров и категорий.
type MockCatalog struct {
	mu         sync.RWMutex
	products   map[string]domain.ProductInfo
	categories map[string]struct{}
}

// NewMockCatalog создаёт пустой каталог.
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		products:   make(map[string]domain.ProductInfo),
		categories: make(map[string]struct{}),
	}
}

// AddProduct регистрирует товар; категория товара добавляется автоматически.
func (c *MockCatalog) AddProduct(info domain.ProductInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[info.ID] = info
	if info.CategoryID != "" {
		c.categories[info.CategoryID] = struct{}{}
	}
}

// AddCategory регистрирует категорию без товаров.
func (c *MockCatalog) AddCategory(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories[id] = struct{}{}
}

func (c *MockCatalog) ProductInfo(productID string) (domain.ProductInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, ok := c.products[productID]
	if !ok {
		return domain.ProductInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (c *MockCatalog) CategoryExists(categoryID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.categories[categoryID]
	return ok, nil
}

var (
	_ domain.CustomerDirectory = (*MockCustomerDirectory)(nil)
	_ domain.AddressDirectory  = (*MockAddressDirectory)(nil)
	_ domain.Catalog           = (*MockCatalog)(nil)
)
