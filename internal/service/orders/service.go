// Package orders реализует протокол изменения открытого заказа клиента:
// добавление и удаление позиций и отправку заказа под оптимистичной блокировкой.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultHistoryLimit = 100

	sideEffectTimeline = "timeline"
	sideEffectOutbox   = "outbox"
)

// Service: единственное место, где проверяется версия открытого заказа.
//
// Изменения одного клиента сериализуются мьютексом по клиенту внутри процесса,
// а между процессами атомарность обеспечивает compare-and-swap в репозитории.
type Service struct {
	customers domain.CustomerRepository
	orders    domain.OrderRepository
	catalog   domain.CatalogLookup

	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry

	pricePolicy  PricePolicy
	historyLimit int
	now          func() time.Time
	newID        func() string

	locks *keyedMutex
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics подключает prometheus-метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimeline включает запись событий жизненного цикла.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) {
		s.timeline = repo
	}
}

// WithOutbox включает постановку событий заказа в transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = repo
	}
}

// WithPricePolicy задаёт политику цены при слиянии позиций.
func WithPricePolicy(policy PricePolicy) Option {
	return func(s *Service) {
		if policy != "" {
			s.pricePolicy = policy
		}
	}
}

// WithHistoryLimit ограничивает число заказов в истории.
func WithHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService конструирует сервис с обязательными зависимостями.
func NewService(
	customers domain.CustomerRepository,
	orders domain.OrderRepository,
	catalog domain.CatalogLookup,
	options ...Option,
) *Service {
	s := &Service{
		customers:    customers,
		orders:       orders,
		catalog:      catalog,
		logger:       log.WithField("component", "order-service"),
		pricePolicy:  PricePolicyFixed,
		historyLimit: defaultHistoryLimit,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		locks:        newKeyedMutex(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// PricePolicy возвращает действующую политику цены.
func (s *Service) PricePolicy() PricePolicy {
	return s.pricePolicy
}

// change описывает зафиксированное изменение заказа для побочных эффектов.
type change struct {
	timelineType string
	eventType    kafka.EventType
	productID    int64
	reason       string
}

// afterCommit пишет timeline и outbox. Ошибки только логируются:
// изменение уже сохранено и не должно превращаться в ошибку для клиента.
func (s *Service) afterCommit(ctx context.Context, order domain.Order, c change) {
	if s.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     c.timelineType,
			Reason:   c.reason,
			Version:  order.Version,
			Occurred: order.UpdatedAt,
		}
		if err := s.timeline.Append(ctx, event); err != nil {
			s.metrics.RecordSideEffectFailure(sideEffectTimeline)
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"event":    c.timelineType,
			}).Warn("failed to append timeline event")
		} else {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(c.eventType, order, order.UpdatedAt)
	if c.productID != 0 {
		event.WithProduct(c.productID)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.metrics.RecordSideEffectFailure(sideEffectOutbox)
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to encode order event")
		return
	}

	msg := domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(c.eventType),
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		s.metrics.RecordSideEffectFailure(sideEffectOutbox)
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    c.eventType,
		}).Warn("failed to enqueue order event")
	}
}

// logFailure пишет в лог неудачную мутацию. Доменные отказы ожидаемы и идут на debug,
// всё остальное считается сбоем инфраструктуры.
func (s *Service) logFailure(op domain.OrderOperation, customerID string, err error) {
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"operation":   op,
		"customer_id": customerID,
	})
	if metrics.ResultOf(err) == metrics.ResultError {
		entry.Error("order mutation failed")
		return
	}
	entry.Debug("order mutation rejected")
}

func productReason(productID int64) string {
	return fmt.Sprintf("product_id=%d", productID)
}
