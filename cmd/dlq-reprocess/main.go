package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second

	envKafkaBrokers = "STOREFRONT_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
	filter      replayFilter
	reportPath  string
}

// replayFilter сужает replay; пустые поля пропускают всё.
type replayFilter struct {
	orderID    string
	customerID string
	eventTypes map[string]bool
}

func (f replayFilter) match(event kafka.OrderEvent) bool {
	if f.orderID != "" && event.OrderID != f.orderID {
		return false
	}
	if f.customerID != "" && event.CustomerID != f.customerID {
		return false
	}
	if len(f.eventTypes) > 0 && !f.eventTypes[string(event.EventType)] {
		return false
	}
	return true
}

// candidate: событие заказа, восстановленное из DLQ и готовое к повторной публикации.
type candidate struct {
	event      kafka.OrderEvent
	deadLetter domain.DeadLetter
	value      []byte
}

func (c candidate) key() string {
	if c.deadLetter.AggregateID != "" {
		return c.deadLetter.AggregateID
	}
	return c.deadLetter.OutboxID
}

// replaySummary: итог прогона, печатается в лог и при -report пишется в JSON.
type replaySummary struct {
	Mode        string         `json:"mode"`
	SourceTopic string         `json:"source_topic"`
	TargetTopic string         `json:"target_topic"`
	Scanned     int            `json:"scanned"`
	Replayed    int            `json:"replayed"`
	Filtered    int            `json:"filtered"`
	Malformed   int            `json:"malformed"`
	ByEventType map[string]int `json:"by_event_type"`
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaPartitions struct {
	consumer sarama.Consumer
}

func (s saramaPartitions) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s saramaPartitions) Close() error {
	return s.consumer.Close()
}

// openKafka подключается к брокерам. Producer создаётся только в режиме -execute.
var openKafka = func(cfg config) (offsetClient, partitionSource, sarama.SyncProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if !cfg.execute {
		return client, saramaPartitions{consumer: consumer}, nil, nil
	}

	producer, err := kafka.NewSyncProducer(cfg.brokers, "storefront-dlq-reprocess")
	if err != nil {
		_ = consumer.Close()
		_ = client.Close()
		return nil, nil, nil, err
	}
	return client, saramaPartitions{consumer: consumer}, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		cfg           config
		brokersRaw    string
		eventTypesRaw string
	)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	fs.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "target topic for replay")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "publish replayed events; default is dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan only the latest messages of each partition (bounded by limit)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this much silence")
	fs.StringVar(&eventTypesRaw, "event-type", "", "replay only these event types, comma-separated (e.g. order.submitted)")
	fs.StringVar(&cfg.filter.orderID, "order-id", "", "replay only events of this order")
	fs.StringVar(&cfg.filter.customerID, "customer-id", "", "replay only events of this customer")
	fs.StringVar(&cfg.reportPath, "report", "", "write JSON summary to this file")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = getenv(envKafkaBrokers)
	}
	cfg.brokers = splitList(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	}
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)
	switch {
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.targetTopic == "":
		return config{}, errors.New("target-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("source-topic and target-topic must differ")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}

	cfg.filter.orderID = strings.TrimSpace(cfg.filter.orderID)
	cfg.filter.customerID = strings.TrimSpace(cfg.filter.customerID)
	for _, eventType := range splitList(eventTypesRaw) {
		if cfg.filter.eventTypes == nil {
			cfg.filter.eventTypes = make(map[string]bool)
		}
		cfg.filter.eventTypes[eventType] = true
	}
	cfg.reportPath = strings.TrimSpace(cfg.reportPath)
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, chunk := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(chunk); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func run(ctx context.Context, cfg config) error {
	offsets, partitions, producer, err := openKafka(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		_ = partitions.Close()
		_ = offsets.Close()
	}()

	r := newReplayer(cfg, offsets, partitions, producer)
	summary, err := r.run(ctx)
	if err != nil {
		return err
	}
	if cfg.reportPath != "" {
		return writeReport(cfg.reportPath, summary)
	}
	return nil
}

type replayer struct {
	cfg        config
	offsets    offsetClient
	partitions partitionSource
	producer   sarama.SyncProducer
	logger     *log.Entry
	now        func() time.Time
	summary    replaySummary
}

func newReplayer(cfg config, offsets offsetClient, partitions partitionSource, producer sarama.SyncProducer) *replayer {
	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	return &replayer{
		cfg:        cfg,
		offsets:    offsets,
		partitions: partitions,
		producer:   producer,
		logger:     log.WithFields(log.Fields{"component": "dlq-replay", "mode": mode}),
		now:        func() time.Time { return time.Now().UTC() },
		summary: replaySummary{
			Mode:        mode,
			SourceTopic: cfg.sourceTopic,
			TargetTopic: cfg.targetTopic,
			ByEventType: make(map[string]int),
		},
	}
}

func (r *replayer) run(ctx context.Context) (replaySummary, error) {
	if r.cfg.execute && r.producer == nil {
		return r.summary, errors.New("producer is required in execute mode")
	}

	r.logger.WithFields(log.Fields{
		"source_topic": r.cfg.sourceTopic,
		"target_topic": r.cfg.targetTopic,
		"limit":        r.cfg.limit,
		"order_id":     r.cfg.filter.orderID,
		"customer_id":  r.cfg.filter.customerID,
	}).Info("starting dlq replay")

	ids, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return r.summary, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	slices.Sort(ids)

	for _, partition := range ids {
		budget := r.cfg.limit - r.summary.Scanned
		if budget <= 0 {
			break
		}
		if err := r.scanPartition(ctx, partition, budget); err != nil {
			return r.summary, err
		}
	}

	r.logger.WithFields(log.Fields{
		"scanned":   r.summary.Scanned,
		"replayed":  r.summary.Replayed,
		"filtered":  r.summary.Filtered,
		"malformed": r.summary.Malformed,
	}).Info("dlq replay finished")
	return r.summary, nil
}

// scanPartition читает партицию от начала (или последние budget сообщений при -from-newest)
// до high watermark на момент старта.
func (r *replayer) scanPartition(ctx context.Context, partition int32, budget int) error {
	oldest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(budget), oldest)
	}

	pc, err := r.partitions.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for scanned := 0; scanned < budget; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			r.logger.WithField("partition", partition).Warn("partition went idle before high watermark")
			return nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			idle.Reset(r.cfg.idleTimeout)

			if err := r.handle(msg); err != nil {
				return err
			}
			scanned++
			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

// handle разбирает одно DLQ-сообщение. Ошибкой считается только сбой публикации:
// битые и отфильтрованные сообщения учитываются в summary и пропускаются.
func (r *replayer) handle(msg *sarama.ConsumerMessage) error {
	r.summary.Scanned++
	logger := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	c, err := decodeCandidate(msg.Value, r.now())
	if err != nil {
		r.summary.Malformed++
		logger.WithError(err).Warn("skip malformed dlq message")
		return nil
	}
	if !r.cfg.filter.match(c.event) {
		r.summary.Filtered++
		return nil
	}

	logger = logger.WithFields(log.Fields{
		"order_id":   c.event.OrderID,
		"event_type": c.event.EventType,
		"version":    c.event.Version,
		"attempts":   c.deadLetter.Attempts,
	})
	if r.cfg.execute {
		if _, _, err := r.producer.SendMessage(r.producerMessage(c)); err != nil {
			return fmt.Errorf("publish replay of %s: %w", c.deadLetter.OutboxID, err)
		}
		logger.Info("dlq message replayed")
	} else {
		logger.Info("dlq replay candidate")
	}
	r.summary.Replayed++
	r.summary.ByEventType[string(c.event.EventType)]++
	return nil
}

func (r *replayer) producerMessage(c candidate) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic:     r.cfg.targetTopic,
		Key:       sarama.StringEncoder(c.key()),
		Value:     sarama.ByteEncoder(c.value),
		Timestamp: r.now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte(kafka.HeaderEventType), Value: []byte(c.deadLetter.EventType)},
			{Key: []byte(kafka.HeaderRetryCount), Value: []byte(strconv.Itoa(c.deadLetter.Attempts))},
			{Key: []byte(kafka.HeaderFailedAt), Value: []byte(c.deadLetter.FailedAt.Format(time.RFC3339Nano))},
		},
	}
}

// decodeCandidate снимает с DLQ-сообщения конверт, достаёт исходное событие заказа
// и заново упаковывает его в конверт основного topic.
func decodeCandidate(value []byte, now time.Time) (candidate, error) {
	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return candidate{}, fmt.Errorf("decode dlq envelope: %w", err)
	}
	dl, err := domain.DecodeDeadLetter(envelope.Payload)
	if err != nil {
		return candidate{}, err
	}

	var event kafka.OrderEvent
	if err := json.Unmarshal(dl.Payload, &event); err != nil {
		return candidate{}, fmt.Errorf("decode order event: %w", err)
	}
	if event.OrderID == "" || event.Version <= 0 {
		return candidate{}, fmt.Errorf("order event %s has no order id or version", dl.OutboxID)
	}

	original := dl.Original()
	encoded, err := json.Marshal(kafka.Envelope{
		ID:            original.ID,
		AggregateType: original.AggregateType,
		AggregateID:   original.AggregateID,
		EventType:     original.EventType,
		Payload:       dl.Payload,
		PublishedAt:   now,
	})
	if err != nil {
		return candidate{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return candidate{event: event, deadLetter: dl, value: encoded}, nil
}

func writeReport(path string, summary replaySummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func fail(format string, args ...any) {
	log.Errorf(format, args...)
	os.Exit(1)
}
