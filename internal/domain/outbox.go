package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AggregateOrder: тип агрегата для событий заказа в outbox.
const AggregateOrder = "order"

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// ErrDeadLetterMalformed возвращается, когда тело DLQ-сообщения не содержит исходного события.
var ErrDeadLetterMalformed = errors.New("dead letter is malformed")

// DeadLetter: тело сообщения, которое outbox worker отправляет в DLQ после исчерпания попыток.
// Payload хранит исходное событие без изменений, поэтому его можно переиграть.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"dlq_published_at"`
}

// NewDeadLetter упаковывает недоставленное сообщение вместе с причиной.
func NewDeadLetter(msg OutboxMessage, attempts int, cause error, at time.Time) DeadLetter {
	dl := DeadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		Attempts:      attempts,
		FailedAt:      at.UTC(),
	}
	if cause != nil {
		dl.PublishError = cause.Error()
	}
	return dl
}

// Message возвращает outbox-сообщение для публикации в DLQ. Идентификатор и агрегат
// совпадают с исходными, чтобы DLQ сохранял партиционирование по заказу.
func (d DeadLetter) Message() (OutboxMessage, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal dead letter: %w", err)
	}
	return OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       body,
	}, nil
}

// Original восстанавливает исходное outbox-сообщение.
func (d DeadLetter) Original() OutboxMessage {
	return OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}

// DecodeDeadLetter разбирает тело DLQ-сообщения.
func DecodeDeadLetter(body []byte) (DeadLetter, error) {
	var dl DeadLetter
	if err := json.Unmarshal(body, &dl); err != nil {
		return DeadLetter{}, fmt.Errorf("%w: %v", ErrDeadLetterMalformed, err)
	}
	if dl.OutboxID == "" || dl.EventType == "" {
		return DeadLetter{}, fmt.Errorf("%w: outbox_id and event_type are required", ErrDeadLetterMalformed)
	}
	if len(dl.Payload) == 0 || string(dl.Payload) == "null" {
		return DeadLetter{}, fmt.Errorf("%w: original payload is missing", ErrDeadLetterMalformed)
	}
	return dl, nil
}
