package kafka

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события заказа.
type EventType string

const (
	EventTypeOrderOpened     EventType = "order.opened"
	EventTypeLineItemAdded   EventType = "order.line_item_added"
	EventTypeLineItemRemoved EventType = "order.line_item_removed"
	EventTypeOrderSubmitted  EventType = "order.submitted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderLine: позиция заказа в событии.
type OrderLine struct {
	ProductID      int64 `json:"product_id"`
	Quantity       int32 `json:"quantity"`
	UnitPriceMinor int64 `json:"unit_price_minor"`
}

// OrderEvent: снимок заказа на момент изменения.
type OrderEvent struct {
	EventType  EventType   `json:"event_type"`
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Status     string      `json:"status"`
	Version    int64       `json:"version"`
	TotalMinor int64       `json:"total_minor"`
	Items      []OrderLine `json:"items"`
	// ProductID заполняется для событий изменения позиции.
	ProductID int64     `json:"product_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создаёт событие по состоянию заказа.
func NewOrderEvent(eventType EventType, order domain.Order, at time.Time) *OrderEvent {
	lines := make([]OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, OrderLine{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceMinor: item.UnitPriceMinor,
		})
	}
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Version:    order.Version,
		TotalMinor: order.Total(),
		Items:      lines,
		Timestamp:  at.UTC(),
	}
}

// WithProduct отмечает товар, которого касалось изменение.
func (e *OrderEvent) WithProduct(productID int64) *OrderEvent {
	e.ProductID = productID
	return e
}
