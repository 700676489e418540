package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки outcome/result.
const (
	OutcomeFound       = "found"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"

	ResultOK    = "ok"
	ResultError = "error"
)

// OrderMetrics содержит метрики агрегатора заказов.
// Все методы безопасно вызывать на nil-получателе.
type OrderMetrics struct {
	// Обращения к внешним сервисам
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec

	// Операции сервиса заказов
	operations *prometheus.CounterVec

	// Публикация событий
	eventsPublished *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		lookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_downstream_lookups_total",
			Help: "Total number of downstream lookups by target collection and outcome",
		}, []string{"target", "outcome"}),
		lookupDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_downstream_lookup_duration_seconds",
			Help:    "Duration of downstream lookups in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"target"}),
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_operations_total",
			Help: "Total number of order service operations by result",
		}, []string{"operation", "result"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_events_published_total",
			Help: "Total number of order lifecycle events published",
		}, []string{"event_type", "result"}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordLookup фиксирует результат и длительность обращения к внешнему сервису.
func (m *OrderMetrics) RecordLookup(target, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(target, outcome).Inc()
	m.lookupDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordOperation увеличивает счётчик операций сервиса заказов.
func (m *OrderMetrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordEventPublished увеличивает счётчик опубликованных событий.
func (m *OrderMetrics) RecordEventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
