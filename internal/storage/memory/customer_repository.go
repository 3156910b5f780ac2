package memory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов поверх общего Store.
func NewCustomerRepository(store *Store) *customerRepositoryInMemory {
	return &customerRepositoryInMemory{store: store}
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepositoryInMemory) Get(_ context.Context, id string) (domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// UpdateAddress заменяет адрес клиента.
func (r *customerRepositoryInMemory) UpdateAddress(_ context.Context, id string, address domain.Address) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	customer.Address = address
	r.store.customers[id] = customer
	return nil
}

// UpdateInfo заменяет атрибуты варианта; смена типа клиента запрещена.
func (r *customerRepositoryInMemory) UpdateInfo(_ context.Context, id string, info domain.CustomerInfo) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if customer.Info.Kind != info.Kind {
		return domain.ErrCustomerInfoInvalid
	}
	customer.Info = copyInfo(info)
	r.store.customers[id] = customer
	return nil
}

// Upsert добавляет или заменяет клиента (dev-сиды и тесты).
// Слот открытого заказа и метка истории существующего клиента сохраняются.
func (r *customerRepositoryInMemory) Upsert(_ context.Context, customer domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.customers[customer.ID]; ok {
		customer.OpenOrderID = existing.OpenOrderID
		customer.HistoryUpdatedAt = existing.HistoryUpdatedAt
	}
	customer.Info = copyInfo(customer.Info)
	r.store.customers[customer.ID] = customer
	return nil
}

func copyInfo(info domain.CustomerInfo) domain.CustomerInfo {
	if info.Residential != nil {
		residential := *info.Residential
		info.Residential = &residential
	}
	if info.Business != nil {
		business := *info.Business
		info.Business = &business
	}
	return info
}

var (
	_ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
	_ domain.CustomerSeeder     = (*customerRepositoryInMemory)(nil)
)
