package orders

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LoadOpenOrder возвращает открытый заказ клиента. Отсутствие заказа не ошибка:
// второй результат равен false.
func (s *Service) LoadOpenOrder(ctx context.Context, customerID string) (domain.Order, bool, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if !customer.HasOpenOrder() {
		return domain.Order{}, false, nil
	}

	order, err := s.orders.Get(ctx, customer.OpenOrderID)
	if err != nil {
		return domain.Order{}, false, err
	}
	if order.Status != domain.OrderStatusOpen {
		// Заказ отправлен между двумя чтениями.
		return domain.Order{}, false, nil
	}
	return order, true, nil
}

// History: отправленные заказы клиента.
type History struct {
	Orders []domain.Order
	// LastModified: момент последнего пополнения истории с точностью до секунды.
	// Нулевое значение означает, что история пуста.
	LastModified time.Time
	// NotModified выставляется, если история не менялась после since. Orders при этом пуст.
	NotModified bool
}

// OrderHistory возвращает историю клиента с учётом условного чтения.
func (s *Service) OrderHistory(ctx context.Context, customerID string, since time.Time) (History, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return History{}, err
	}

	var lastModified time.Time
	if !customer.HistoryUpdatedAt.IsZero() {
		lastModified = customer.HistoryUpdatedAt.UTC().Truncate(time.Second)
	}

	if !since.IsZero() && !lastModified.IsZero() && !since.Before(lastModified) {
		s.metrics.RecordHistoryNotModified()
		return History{LastModified: lastModified, NotModified: true}, nil
	}

	orders, err := s.orders.ListSubmitted(ctx, customerID, s.historyLimit)
	if err != nil {
		return History{}, err
	}
	return History{Orders: orders, LastModified: lastModified}, nil
}

// Timeline возвращает события жизненного цикла заказа клиента.
// Чужой заказ для вызывающего не существует.
func (s *Service) Timeline(ctx context.Context, customerID, orderID string) ([]domain.TimelineEvent, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, domain.ErrOrderNotFound
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, orderID)
}
