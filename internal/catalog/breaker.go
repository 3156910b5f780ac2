package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ErrUnavailable возвращается, когда breaker разомкнут и источник каталога не опрашивается.
var ErrUnavailable = errors.New("catalog unavailable")

// BreakerConfig описывает параметры circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures: после скольких подряд неудачных вызовов breaker размыкается.
	ConsecutiveFailures uint32
	// OpenTimeout: сколько breaker остаётся разомкнутым перед пробным запросом.
	OpenTimeout time.Duration
	// HalfOpenRequests: сколько пробных запросов пропускается в half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig возвращает значения по умолчанию.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		ConsecutiveFailures: 5,
		OpenTimeout:         10 * time.Second,
		HalfOpenRequests:    1,
	}
}

// StateObserver получает переходы состояний breaker (например, для метрик).
type StateObserver func(name string, from, to gobreaker.State)

// Breaker защищает источник каталога от каскадных отказов.
// Ответы "не найдено" считаются успешными и breaker не размыкают.
type Breaker struct {
	source     domain.CatalogLookup
	products   *gobreaker.CircuitBreaker[domain.Product]
	categories *gobreaker.CircuitBreaker[domain.Category]
}

// NewBreaker оборачивает source двумя независимыми breaker'ами.
func NewBreaker(source domain.CatalogLookup, cfg BreakerConfig, logger *log.Entry, observe StateObserver) *Breaker {
	defaults := DefaultBreakerConfig()
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = defaults.ConsecutiveFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = defaults.HalfOpenRequests
	}
	if logger == nil {
		logger = log.WithField("component", "catalog-breaker")
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: cfg.HalfOpenRequests,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || domain.IsNotFound(err) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(log.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("catalog circuit breaker state changed")
				if observe != nil {
					observe(name, from, to)
				}
			},
		}
	}

	return &Breaker{
		source:     source,
		products:   gobreaker.NewCircuitBreaker[domain.Product](settings("catalog-products")),
		categories: gobreaker.NewCircuitBreaker[domain.Category](settings("catalog-categories")),
	}
}

func (b *Breaker) Product(ctx context.Context, id int64) (domain.Product, error) {
	p, err := b.products.Execute(func() (domain.Product, error) {
		return b.source.Product(ctx, id)
	})
	return p, translateBreakerErr(err)
}

func (b *Breaker) Category(ctx context.Context, id int64) (domain.Category, error) {
	c, err := b.categories.Execute(func() (domain.Category, error) {
		return b.source.Category(ctx, id)
	})
	return c, translateBreakerErr(err)
}

// ProductsState возвращает текущее состояние breaker для товаров.
func (b *Breaker) ProductsState() gobreaker.State {
	return b.products.State()
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

var _ domain.CatalogLookup = (*Breaker)(nil)
