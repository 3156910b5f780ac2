package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestDeadLetter_RoundTripKeepsOriginal(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.FixedZone("MSK", 3*3600))
	original := domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "order-1",
		EventType:     "order.submitted",
		Payload:       []byte(`{"order_id":"order-1","version":3}`),
	}

	msg, err := domain.NewDeadLetter(original, 5, errors.New("broker unavailable"), at).Message()
	require.NoError(t, err)
	assert.Equal(t, original.ID, msg.ID)
	assert.Equal(t, original.AggregateID, msg.AggregateID)
	assert.Equal(t, original.EventType, msg.EventType)

	dl, err := domain.DecodeDeadLetter(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, 5, dl.Attempts)
	assert.Equal(t, "broker unavailable", dl.PublishError)
	assert.True(t, dl.FailedAt.Equal(at))
	assert.Equal(t, time.UTC, dl.FailedAt.Location())

	restored := dl.Original()
	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.AggregateType, restored.AggregateType)
	assert.JSONEq(t, string(original.Payload), string(restored.Payload))
}

func TestDecodeDeadLetter_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `{`,
		"no outbox id":    `{"event_type":"order.opened","payload":{"order_id":"o"}}`,
		"no event type":   `{"outbox_id":"m","payload":{"order_id":"o"}}`,
		"no payload":      `{"outbox_id":"m","event_type":"order.opened"}`,
		"null payload":    `{"outbox_id":"m","event_type":"order.opened","payload":null}`,
		"unrelated event": `{"order_id":"o","status":"OPEN"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := domain.DecodeDeadLetter([]byte(body))
			assert.ErrorIs(t, err, domain.ErrDeadLetterMalformed)
		})
	}
}
