package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewOrderEvent(t *testing.T) {
	order := testOrder()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("X", 3600))

	event := NewOrderEvent(EventTypeLineItemAdded, order, at).WithProduct(1)

	require.Equal(t, EventTypeLineItemAdded, event.EventType)
	require.Equal(t, "order-123", event.OrderID)
	require.Equal(t, "OPEN", event.Status)
	require.Equal(t, int64(1), event.Version)
	require.Equal(t, int64(300), event.TotalMinor)
	require.Equal(t, []OrderLine{{ProductID: 1, Quantity: 2, UnitPriceMinor: 150}}, event.Items)
	require.Equal(t, int64(1), event.ProductID)
	require.Equal(t, time.UTC, event.Timestamp.Location())
}
