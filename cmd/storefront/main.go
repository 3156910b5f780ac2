package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/service/orders"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envConfigFile          = "STOREFRONT_CONFIG_FILE"
	envLogLevel            = "STOREFRONT_LOG_LEVEL"
	envHTTPAddr            = "STOREFRONT_HTTP_ADDR"
	envGRPCAddr            = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr         = "STOREFRONT_METRICS_ADDR"
	envRequestTimeout      = "STOREFRONT_REQUEST_TIMEOUT"
	envStorageDriver       = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN         = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "STOREFRONT_REDIS_ADDR"
	envCatalogCacheTTL     = "STOREFRONT_CATALOG_CACHE_TTL"
	envKafkaBrokers        = "STOREFRONT_KAFKA_BROKERS"
	envOutboxPollInterval  = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envOutboxRetention     = "STOREFRONT_OUTBOX_RETENTION"
	envOutboxCleanup       = "STOREFRONT_OUTBOX_CLEANUP_INTERVAL"
	envPricePolicy         = "STOREFRONT_PRICE_POLICY"
	envHistoryLimit        = "STOREFRONT_HISTORY_LIMIT"
	envSeedDemoData        = "STOREFRONT_SEED_DEMO_DATA"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	level = strings.TrimSpace(level)
	if level == "" {
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// readConfigFromEnv собирает конфигурацию: значения по умолчанию, затем YAML-файл из
// STOREFRONT_CONFIG_FILE, затем переменные окружения. Некорректные значения
// пропускаются с предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	if path, ok := lookupTrimmed(lookup, envConfigFile); ok {
		loaded, err := app.LoadConfigFile(path, cfg)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envConfigFile, err))
		} else {
			cfg = loaded
		}
	}

	if v, ok := lookupTrimmed(lookup, envHTTPAddr); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envGRPCAddr); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envStorageDriver); ok {
		driver := strings.ToLower(v)
		switch driver {
		case app.StorageDriverMemory, app.StorageDriverPostgres:
			cfg.StorageDriver = driver
		default:
			warnings = append(warnings, fmt.Sprintf("%s: unsupported storage driver %q", envStorageDriver, v))
		}
	}
	if v, ok := lookupTrimmed(lookup, envPostgresDSN); ok {
		cfg.PostgresDSN = v
	}
	if v, ok := lookupTrimmed(lookup, envRedisAddr); ok {
		cfg.RedisAddr = v
	}
	if v, ok := lookupTrimmed(lookup, envKafkaBrokers); ok {
		cfg.KafkaBrokers = v
	}
	if v, ok := lookupTrimmed(lookup, envPricePolicy); ok {
		if policy, err := orders.ParsePricePolicy(v); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", envPricePolicy, err))
		} else {
			cfg.PricePolicy = string(policy)
		}
	}

	applyBool := func(key string, target *bool) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*target = parsed
	}
	applyInt := func(key string, target *int) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*target = parsed
	}
	applyDuration := func(key string, target *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		parsed, err := parseDuration(v, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*target = parsed
	}
	positive := func(d time.Duration) bool { return d > 0 }
	nonNegative := func(d time.Duration) bool { return d >= 0 }

	applyBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	applyBool(envSeedDemoData, &cfg.SeedDemoData)
	applyInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	applyInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	applyInt(envHistoryLimit, &cfg.HistoryLimit)
	applyDuration(envRequestTimeout, &cfg.RequestTimeout, positive, "must be > 0")
	applyDuration(envCatalogCacheTTL, &cfg.CatalogCacheTTL, positive, "must be > 0")
	applyDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	applyDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	applyDuration(envOutboxRetention, &cfg.OutboxRetention, nonNegative, "must be >= 0")
	applyDuration(envOutboxCleanup, &cfg.OutboxCleanupInterval, positive, "must be > 0")

	return cfg, warnings
}

func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	value, ok := lookup(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", value)
	}
}

func parseInt(value string, valid func(int) bool, rule string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", value, err)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("invalid int value %q: %s", value, rule)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", value, err)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("invalid duration value %q: %s", value, rule)
	}
	return parsed, nil
}

func main() {
	if err := setupLogger(os.Getenv(envLogLevel)); err != nil {
		log.WithError(err).Warn("некорректный уровень логирования, используем info")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Current().LogFields()).WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"price_policy":   cfg.PricePolicy,
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}
