package app

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/retention"
)

const outboxStopTimeout = 5 * time.Second

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой; при ошибке подключения producer равен nil.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	var brokerList []string
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokerList = append(brokerList, broker)
		}
	}
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// startOutboxWorker запускает публикацию outbox в Kafka. Без producer воркер не нужен:
// возвращаются nil и закрытый канал.
func startOutboxWorker(ctx context.Context, cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) (context.CancelFunc, <-chan struct{}) {
	done := make(chan struct{})
	if producer == nil || repo == nil {
		close(done)
		return nil, done
	}

	worker := outbox.NewWorker(
		repo,
		kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	logger.Info("outbox worker started")
	return cancel, done
}

// startOutboxCleanup запускает удаление обработанных сообщений outbox старше cfg.OutboxRetention.
func startOutboxCleanup(ctx context.Context, cfg Config, repo domain.OutboxRepository, logger *log.Entry) (context.CancelFunc, <-chan struct{}) {
	done := make(chan struct{})
	if repo == nil {
		close(done)
		return nil, done
	}

	worker := retention.NewCleanupWorker(
		repo,
		retention.WithLogger(logger.WithField("layer", "outbox-cleanup")),
		retention.WithInterval(cfg.OutboxCleanupInterval),
		retention.WithBatchSize(cfg.OutboxBatchSize),
		retention.WithRetention(cfg.OutboxRetention),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

// shutdownOutboxWorker останавливает воркер и ждёт завершения текущего батча.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(outboxStopTimeout):
		logger.Warn("outbox worker did not stop in time")
	}
}
