// Package catalog содержит декораторы над справочником товаров: кеш в Redis
// и circuit breaker вокруг источника.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// DefaultCacheTTL: базовое время жизни записи каталога в кеше.
	DefaultCacheTTL = 5 * time.Minute
	maxTTLJitter    = 30 * time.Second
)

// RedisCache кеширует ответы источника каталога. Ошибки Redis не ломают
// чтение: запрос уходит в источник, а проблема пишется в лог.
type RedisCache struct {
	client  redis.Cmdable
	source  domain.CatalogLookup
	baseTTL time.Duration
	logger  *log.Entry
}

// NewRedisCache оборачивает source кешем. ttl<=0 заменяется DefaultCacheTTL.
func NewRedisCache(client redis.Cmdable, source domain.CatalogLookup, ttl time.Duration, logger *log.Entry) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = log.WithField("component", "catalog-cache")
	}
	return &RedisCache{
		client:  client,
		source:  source,
		baseTTL: ttl,
		logger:  logger,
	}
}

// Product возвращает товар из кеша или из источника.
func (c *RedisCache) Product(ctx context.Context, id int64) (domain.Product, error) {
	return cached(ctx, c, productKey(id), func() (domain.Product, error) {
		return c.source.Product(ctx, id)
	})
}

// Category возвращает категорию из кеша или из источника.
func (c *RedisCache) Category(ctx context.Context, id int64) (domain.Category, error) {
	return cached(ctx, c, categoryKey(id), func() (domain.Category, error) {
		return c.source.Category(ctx, id)
	})
}

// InvalidateProduct удаляет товар из кеша, например после смены цены.
func (c *RedisCache) InvalidateProduct(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cached[T any](ctx context.Context, c *RedisCache, key string, load func() (T, error)) (T, error) {
	var zero T

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var value T
		if err := json.Unmarshal(data, &value); err == nil {
			return value, nil
		}
		c.logger.WithField("key", key).Warn("corrupted catalog cache entry, reloading")
	case errors.Is(err, redis.Nil):
		// промах
	default:
		c.logger.WithError(err).WithField("key", key).Warn("catalog cache read failed")
	}

	value, err := load()
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return value, nil
	}
	if err := c.client.Set(ctx, key, encoded, c.ttl()).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("catalog cache write failed")
	}
	return value, nil
}

func (c *RedisCache) ttl() time.Duration {
	return c.baseTTL + time.Duration(rand.Int63n(int64(maxTTLJitter)))
}

func productKey(id int64) string {
	return fmt.Sprintf("catalog:product:%d", id)
}

func categoryKey(id int64) string {
	return fmt.Sprintf("catalog:category:%d", id)
}

var _ domain.CatalogLookup = (*RedisCache)(nil)
