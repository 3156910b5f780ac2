package app

import (
	log "github.com/sirupsen/logrus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// catalogStack: источник каталога после всех обёрток.
type catalogStack struct {
	lookup domain.CatalogLookup
	// redis равен nil, если кеш не настроен.
	redis *redis.Client
}

func (s catalogStack) close(logger *log.Entry) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		logger.WithError(err).Warn("failed to close redis client")
	}
}

// initCatalog оборачивает источник каталога breaker'ом и, если задан RedisAddr, кешем.
// Кеш стоит снаружи: попадание в кеш не проходит через breaker.
func initCatalog(cfg Config, source domain.CatalogLookup, orderMetrics *metrics.OrderMetrics, logger *log.Entry) catalogStack {
	observe := func(name string, _, to gobreaker.State) {
		orderMetrics.SetBreakerState(name, float64(to))
	}
	breaker := catalog.NewBreaker(source, catalog.DefaultBreakerConfig(), logger.WithField("layer", "catalog-breaker"), observe)

	if cfg.RedisAddr == "" {
		return catalogStack{lookup: breaker}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logger.WithField("addr", cfg.RedisAddr).Info("catalog redis cache enabled")
	return catalogStack{
		lookup: catalog.NewRedisCache(client, breaker, cfg.CatalogCacheTTL, logger.WithField("layer", "catalog-cache")),
		redis:  client,
	}
}
