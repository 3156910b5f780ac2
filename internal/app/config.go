package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
// Config сравним по значению: списки (брокеры Kafka) хранятся строкой через запятую.
type Config struct {
	HTTPAddr       string        `yaml:"http_addr"`
	GRPCAddr       string        `yaml:"grpc_addr"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`

	RedisAddr       string        `yaml:"redis_addr"`
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl"`

	KafkaBrokers string `yaml:"kafka_brokers"`

	OutboxPollInterval    time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize       int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts     int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay      time.Duration `yaml:"outbox_retry_delay"`
	OutboxRetention       time.Duration `yaml:"outbox_retention"`
	OutboxCleanupInterval time.Duration `yaml:"outbox_cleanup_interval"`

	PricePolicy  string `yaml:"price_policy"`
	HistoryLimit int    `yaml:"history_limit"`
	SeedDemoData bool   `yaml:"seed_demo_data"`
}

// DefaultConfig возвращает настройки локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":8080",
		GRPCAddr:              ":50051",
		MetricsAddr:           ":9090",
		RequestTimeout:        10 * time.Second,
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		CatalogCacheTTL:       5 * time.Minute,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      50 * time.Millisecond,
		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		PricePolicy:           string(orders.PricePolicyFixed),
		HistoryLimit:          100,
		SeedDemoData:          true,
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres storage driver requires a DSN")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if _, err := orders.ParsePricePolicy(c.PricePolicy); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return errors.New("http address is required")
	}
	return nil
}

// Brokers возвращает список брокеров Kafka без пустых элементов.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// LoadConfigFile накладывает YAML-файл поверх base. Неизвестные ключи считаются ошибкой.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config file: %w", err)
	}
	return decodeConfig(data, base)
}

func decodeConfig(data []byte, base Config) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("decode config file: %w", err)
	}
	return cfg, nil
}
