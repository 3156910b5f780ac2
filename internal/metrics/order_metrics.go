package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Результаты мутаций открытого заказа (значение label result).
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// OrderMetrics содержит метрики протокола изменения открытого заказа.
// Методы безопасно вызывать на nil.
type OrderMetrics struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec

	ordersOpened    prometheus.Counter
	ordersSubmitted prometheus.Counter
	submittedItems  prometheus.Histogram

	timelineEvents     prometheus.Counter
	sideEffectFailures *prometheus.CounterVec

	historyNotModified prometheus.Counter
	breakerState       *prometheus.GaugeVec
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		mutations: register(registerer, "storefront_order_mutations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_mutations_total",
			Help: "Open-order mutations by operation and result",
		}, []string{"operation", "result"})),
		mutationDuration: register(registerer, "storefront_order_mutation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_order_mutation_duration_seconds",
			Help:    "Duration of open-order mutations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"})),
		ordersOpened: register(registerer, "storefront_orders_opened_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_opened_total",
			Help: "Total number of open orders created by a first add",
		})),
		ordersSubmitted: register(registerer, "storefront_orders_submitted_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_submitted_total",
			Help: "Total number of submitted orders",
		})),
		submittedItems: register(registerer, "storefront_submitted_order_line_items", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_submitted_order_line_items",
			Help:    "Number of line items in submitted orders",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		})),
		timelineEvents: register(registerer, "storefront_timeline_events_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		sideEffectFailures: register(registerer, "storefront_side_effect_failures_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_side_effect_failures_total",
			Help: "Failures of post-commit side effects (timeline, outbox)",
		}, []string{"kind"})),
		historyNotModified: register(registerer, "storefront_order_history_not_modified_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_order_history_not_modified_total",
			Help: "Order history reads answered as not modified",
		})),
		breakerState: register(registerer, "storefront_catalog_breaker_state", prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_catalog_breaker_state",
			Help: "Catalog circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"breaker"})),
	}
}

// ResultOf классифицирует ошибку мутации для label result.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case domain.IsVersionConflict(err):
		return ResultConflict
	case domain.IsNotFound(err):
		return ResultNotFound
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidState):
		return ResultInvalid
	default:
		return ResultError
	}
}

// RecordMutation учитывает результат и длительность мутации.
func (m *OrderMetrics) RecordMutation(op domain.OrderOperation, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(op), ResultOf(err)).Inc()
	m.mutationDuration.WithLabelValues(string(op)).Observe(duration.Seconds())
}

// RecordOrderOpened увеличивает счётчик созданных открытых заказов.
func (m *OrderMetrics) RecordOrderOpened() {
	if m == nil {
		return
	}
	m.ordersOpened.Inc()
}

// RecordOrderSubmitted учитывает отправленный заказ и число его позиций.
func (m *OrderMetrics) RecordOrderSubmitted(items int) {
	if m == nil {
		return
	}
	m.ordersSubmitted.Inc()
	m.submittedItems.Observe(float64(items))
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordSideEffectFailure учитывает сбой побочного эффекта после коммита.
func (m *OrderMetrics) RecordSideEffectFailure(kind string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(kind).Inc()
}

// RecordHistoryNotModified учитывает ответ 304 на чтение истории.
func (m *OrderMetrics) RecordHistoryNotModified() {
	if m == nil {
		return
	}
	m.historyNotModified.Inc()
}

// SetBreakerState публикует состояние circuit breaker каталога.
func (m *OrderMetrics) SetBreakerState(name string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(state)
}
