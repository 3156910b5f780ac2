package orders

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// AddLineItem добавляет товар в открытый заказ клиента.
//
// Если открытого заказа нет, он создаётся вместе с первой позицией, а
// expectedVersion игнорируется. Иначе expectedVersion обязателен и должен
// совпасть с текущей версией заказа, в противном случае ErrOrderModified.
func (s *Service) AddLineItem(
	ctx context.Context,
	customerID string,
	productID int64,
	quantity int32,
	expectedVersion *int64,
) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordMutation(domain.OrderOperationAdd, err, time.Since(started))
		if err != nil {
			s.logFailure(domain.OrderOperationAdd, customerID, err)
		}
	}()

	unlock := s.locks.Lock(customerID)
	defer unlock()

	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if quantity <= 0 {
		return domain.Order{}, domain.ErrInvalidQuantity
	}
	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()

	if !customer.HasOpenOrder() {
		return s.openWithLineItem(ctx, customer.ID, product, quantity, now)
	}

	order, err = s.loadOpenOrder(ctx, customer)
	if err != nil {
		return domain.Order{}, err
	}
	if expectedVersion == nil || *expectedVersion != order.CurrentVersion() {
		return domain.Order{}, domain.ErrOrderModified
	}

	expected := order.CurrentVersion()
	if _, err := s.addLineItem(&order, product, quantity, now); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Save(ctx, order, expected); err != nil {
		return domain.Order{}, err
	}

	s.afterCommit(ctx, order, change{
		timelineType: domain.TimelineLineItemAdded,
		eventType:    kafka.EventTypeLineItemAdded,
		productID:    product.ID,
		reason:       productReason(product.ID),
	})
	return order, nil
}

// openWithLineItem выполняет переход NO_OPEN_ORDER -> OPEN: заказ создаётся
// уже с первой позицией, поэтому пустой заказ никогда не попадает в хранилище.
func (s *Service) openWithLineItem(
	ctx context.Context,
	customerID string,
	product domain.Product,
	quantity int32,
	now time.Time,
) (domain.Order, error) {
	order := domain.NewOpenOrder(s.newID(), customerID, now)
	if _, err := s.addLineItem(&order, product, quantity, now); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderOpened()
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": customerID,
	}).Info("open order created")

	s.afterCommit(ctx, order, change{
		timelineType: domain.TimelineOrderOpened,
		eventType:    kafka.EventTypeOrderOpened,
	})
	s.afterCommit(ctx, order, change{
		timelineType: domain.TimelineLineItemAdded,
		eventType:    kafka.EventTypeLineItemAdded,
		productID:    product.ID,
		reason:       productReason(product.ID),
	})
	return order, nil
}

func (s *Service) addLineItem(order *domain.Order, product domain.Product, quantity int32, now time.Time) (domain.LineItem, error) {
	if s.pricePolicy == PricePolicyRefresh {
		return order.AddOrMergeLineItemRepriced(product.ID, quantity, product.PriceMinor, now)
	}
	return order.AddOrMergeLineItem(product.ID, quantity, product.PriceMinor, now)
}

// RemoveLineItem удаляет позицию из открытого заказа.
// Последняя позиция удаляется как обычная: заказ остаётся открытым и пустым.
func (s *Service) RemoveLineItem(
	ctx context.Context,
	customerID string,
	productID int64,
	expectedVersion int64,
) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordMutation(domain.OrderOperationRemove, err, time.Since(started))
		if err != nil {
			s.logFailure(domain.OrderOperationRemove, customerID, err)
		}
	}()

	unlock := s.locks.Lock(customerID)
	defer unlock()

	order, err = s.requireOpenOrder(ctx, customerID, expectedVersion)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.RemoveLineItem(productID, s.now()); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Save(ctx, order, expectedVersion); err != nil {
		return domain.Order{}, err
	}

	s.afterCommit(ctx, order, change{
		timelineType: domain.TimelineLineItemRemoved,
		eventType:    kafka.EventTypeLineItemRemoved,
		productID:    productID,
		reason:       productReason(productID),
	})
	return order, nil
}

// Submit отправляет открытый заказ. После успеха слот открытого заказа клиента
// пуст, а заказ становится частью истории.
func (s *Service) Submit(ctx context.Context, customerID string, expectedVersion int64) (order domain.Order, err error) {
	started := time.Now()
	defer func() {
		s.metrics.RecordMutation(domain.OrderOperationSubmit, err, time.Since(started))
		if err != nil {
			s.logFailure(domain.OrderOperationSubmit, customerID, err)
		}
	}()

	unlock := s.locks.Lock(customerID)
	defer unlock()

	order, err = s.requireOpenOrder(ctx, customerID, expectedVersion)
	if err != nil {
		return domain.Order{}, err
	}

	if err := order.Submit(s.now()); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Submit(ctx, order, expectedVersion); err != nil {
		return domain.Order{}, err
	}

	s.metrics.RecordOrderSubmitted(len(order.Items))
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": customerID,
		"version":     order.Version,
		"total_minor": order.Total(),
	}).Info("order submitted")

	s.afterCommit(ctx, order, change{
		timelineType: domain.TimelineOrderSubmitted,
		eventType:    kafka.EventTypeOrderSubmitted,
	})
	return order, nil
}

// requireOpenOrder загружает открытый заказ для remove/submit и сверяет версию.
func (s *Service) requireOpenOrder(ctx context.Context, customerID string, expectedVersion int64) (domain.Order, error) {
	customer, err := s.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if !customer.HasOpenOrder() {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order, err := s.loadOpenOrder(ctx, customer)
	if err != nil {
		return domain.Order{}, err
	}
	if expectedVersion != order.CurrentVersion() {
		return domain.Order{}, domain.ErrOrderModified
	}
	return order, nil
}

// loadOpenOrder читает заказ из слота клиента. Если между чтением клиента и
// заказа тот успели отправить из другого процесса, это конфликт версий.
func (s *Service) loadOpenOrder(ctx context.Context, customer domain.Customer) (domain.Order, error) {
	order, err := s.orders.Get(ctx, customer.OpenOrderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusOpen || order.CustomerID != customer.ID {
		return domain.Order{}, domain.ErrOrderModified
	}
	return order, nil
}
