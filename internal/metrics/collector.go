// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and records the generation pipeline's Prometheus
// metrics. Metrics are namespaced so multiple instances can coexist in
// tests.
type Collector struct {
	// generation metrics
	genRequestsTotal   *prometheus.CounterVec
	genRequestDuration *prometheus.HistogramVec
	genCost            *prometheus.CounterVec

	// async task metrics
	pollAttempts  *prometheus.HistogramVec
	tasksInFlight *prometheus.GaugeVec

	// settings store metrics
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec
	dbQueryDuration   *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.genRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Total number of generation requests",
		},
		[]string{"kind", "provider", "status"},
	)

	c.genRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_request_duration_seconds",
			Help:      "Generation request duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"kind", "provider"},
	)

	c.genCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_cost_total",
			Help:      "Total estimated vendor spend in USD",
		},
		[]string{"kind", "provider"},
	)

	c.pollAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_attempts",
			Help:      "Status checks per async task",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider"},
	)

	c.tasksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Async tasks currently being polled",
		},
		[]string{"kind", "provider"},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"database", "operation"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordGeneration records one finished generation call.
func (c *Collector) RecordGeneration(kind, provider, status string, duration time.Duration, cost float64) {
	c.genRequestsTotal.WithLabelValues(kind, provider, status).Inc()
	c.genRequestDuration.WithLabelValues(kind, provider).Observe(duration.Seconds())
	if cost > 0 {
		c.genCost.WithLabelValues(kind, provider).Add(cost)
	}
}

// RecordPoll records the attempt count of one completed poll loop.
func (c *Collector) RecordPoll(provider string, attempts int) {
	c.pollAttempts.WithLabelValues(provider).Observe(float64(attempts))
}

// TaskStarted marks an async task entering the poll loop.
func (c *Collector) TaskStarted(kind, provider string) {
	c.tasksInFlight.WithLabelValues(kind, provider).Inc()
}

// TaskFinished marks an async task leaving the poll loop.
func (c *Collector) TaskFinished(kind, provider string) {
	c.tasksInFlight.WithLabelValues(kind, provider).Dec()
}

// RecordDBConnections records settings store pool gauges.
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// RecordDBQuery records one settings store query.
func (c *Collector) RecordDBQuery(database, operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
