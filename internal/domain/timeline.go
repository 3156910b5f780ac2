package domain

import "time"

// Типы событий timeline для открытого заказа.
const (
	TimelineOrderOpened     = "OrderOpened"
	TimelineLineItemAdded   = "LineItemAdded"
	TimelineLineItemRemoved = "LineItemRemoved"
	TimelineOrderSubmitted  = "OrderSubmitted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Version  int64
	Occurred time.Time
}
