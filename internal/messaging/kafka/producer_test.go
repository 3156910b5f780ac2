package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func testOrder() domain.Order {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	order := domain.NewOpenOrder("order-123", "cust-1", now)
	_, _ = order.AddOrMergeLineItem(1, 2, 150, now)
	return order
}

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" {
			t.Errorf("unexpected key %q", key)
		}
		if msg.Topic != TopicOrderEvents {
			t.Errorf("unexpected topic %q", msg.Topic)
		}
		return nil
	})

	event := NewOrderEvent(EventTypeOrderOpened, testOrder(), time.Now())
	if err := producer.PublishEvent(TopicOrderEvents, "order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderSubmitted, testOrder(), time.Now())
	if err := producer.PublishEvent(TopicOrderEvents, "order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	if err := producer.PublishEvent(TopicOrderEvents, "k", map[string]any{"bad": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_CloseNil(t *testing.T) {
	var producer *Producer
	if err := producer.Close(); err != nil {
		t.Fatalf("close of nil producer must be a no-op, got %v", err)
	}
}

func TestProducerConfig(t *testing.T) {
	cfg := ProducerConfig("")
	if cfg.ClientID != defaultClientID {
		t.Fatalf("expected default client id, got %q", cfg.ClientID)
	}
	if !cfg.Producer.Idempotent || cfg.Net.MaxOpenRequests != 1 {
		t.Fatal("producer must be idempotent with a single in-flight request")
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("expected WaitForAll acks, got %v", cfg.Producer.RequiredAcks)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("producer config must be valid: %v", err)
	}

	if got := ProducerConfig("storefront-dlq-reprocess").ClientID; got != "storefront-dlq-reprocess" {
		t.Fatalf("unexpected client id: %q", got)
	}
}

func TestNewSyncProducer_UnreachableBroker(t *testing.T) {
	if _, err := NewSyncProducer([]string{"127.0.0.1:1"}, "test"); err == nil {
		t.Fatal("expected error for unreachable broker")
	}
}
