package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

// Create сохраняет новый заказ и занимает слот открытого заказа клиента.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer, ok := r.store.customers[order.CustomerID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if customer.HasOpenOrder() {
		return domain.ErrOrderModified
	}
	if _, exists := r.store.orders[order.ID]; exists {
		return domain.ErrOrderModified
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.store.orders[order.ID] = order.Clone()
	customer.OpenOrderID = order.ID
	r.store.customers[customer.ID] = customer
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// Save перезаписывает открытый заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.checkVersionLocked(order.ID, expectedVersion); err != nil {
		return err
	}
	r.store.orders[order.ID] = order.Clone()
	return nil
}

// Submit сохраняет отправленный заказ и освобождает слот клиента.
func (r *orderRepositoryInMemory) Submit(_ context.Context, order domain.Order, expectedVersion int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if err := r.checkVersionLocked(order.ID, expectedVersion); err != nil {
		return err
	}

	customer, ok := r.store.customers[order.CustomerID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if customer.OpenOrderID != order.ID {
		return domain.ErrOrderModified
	}

	r.store.orders[order.ID] = order.Clone()
	customer.OpenOrderID = ""
	customer.HistoryUpdatedAt = order.UpdatedAt
	r.store.customers[customer.ID] = customer
	return nil
}

// ListSubmitted возвращает историю клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListSubmitted(_ context.Context, customerID string, limit int) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.store.orders {
		if order.CustomerID != customerID || order.Status != domain.OrderStatusSubmitted {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].SubmittedAt.After(result[j].SubmittedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func (r *orderRepositoryInMemory) checkVersionLocked(id string, expectedVersion int64) error {
	current, ok := r.store.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Status != domain.OrderStatusOpen || current.Version != expectedVersion {
		return domain.ErrOrderModified
	}
	return nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
