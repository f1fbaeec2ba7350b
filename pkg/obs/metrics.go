// Package obs carries the span telemetry store's own ambient observability:
// Prometheus metrics and OpenTelemetry tracing, adapted from the wider
// project's pkg/observability package but scoped to the store's domain
// events instead of agent/LLM/tool invocations.
package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus registry backing Metrics.
type MetricsConfig struct {
	Enabled   bool              `yaml:"enabled,omitempty"`
	Endpoint  string            `yaml:"endpoint,omitempty"`
	Namespace string            `yaml:"namespace,omitempty"`
	ConstLabels map[string]string `yaml:"const_labels,omitempty"`
}

func (c *MetricsConfig) setDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "spanstore"
	}
}

// Metrics collects counters/histograms/gauges for every telemetry
// component. All methods are safe to call on a nil *Metrics (the case when
// metrics are disabled), matching the rest of the ecosystem's nil-receiver
// guard convention.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	spansCommitted   *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	aggregatorFlush  prometheus.Histogram
	openSpans        prometheus.Gauge

	querySpansTotal    *prometheus.CounterVec
	querySpansDuration prometheus.Histogram
	queryResultSize    prometheus.Histogram

	purgeBatches  prometheus.Counter
	purgeDeleted  *prometheus.CounterVec
	purgeDuration prometheus.Histogram

	reservationsHeld *prometheus.CounterVec
	listDeletedCalls prometheus.Counter
}

// NewMetrics builds a Metrics instance, or returns (nil, nil) when cfg
// disables metrics — every recording method tolerates the nil receiver.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.setDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.init()
	return m, nil
}

func (m *Metrics) init() {
	ns := m.config.Namespace

	m.spansCommitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "aggregator",
		Name:        "spans_committed_total",
		Help:        "Spans committed to the store by the aggregator, by reason.",
		ConstLabels: m.config.ConstLabels,
	}, []string{"reason"})

	m.eventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "aggregator",
		Name:        "events_dropped_total",
		Help:        "Events dropped by the aggregator before persistence, by reason.",
		ConstLabels: m.config.ConstLabels,
	}, []string{"reason"})

	m.aggregatorFlush = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "aggregator",
		Name:        "flush_duration_seconds",
		Help:        "Time spent writing one aggregator batch to the store.",
		Buckets:     prometheus.ExponentialBuckets(0.001, 2, 12),
		ConstLabels: m.config.ConstLabels,
	})

	m.openSpans = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Subsystem:   "aggregator",
		Name:        "open_spans",
		Help:        "Spans currently buffered in memory awaiting span-end.",
		ConstLabels: m.config.ConstLabels,
	})

	m.querySpansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "query",
		Name:        "spans_total",
		Help:        "query_spans calls, by whether the result was empty.",
		ConstLabels: m.config.ConstLabels,
	}, []string{"outcome"})

	m.querySpansDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "query",
		Name:        "duration_seconds",
		Help:        "query_spans latency in seconds.",
		Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		ConstLabels: m.config.ConstLabels,
	})

	m.queryResultSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "query",
		Name:        "result_size",
		Help:        "Number of span ids returned per query_spans call.",
		Buckets:     prometheus.ExponentialBuckets(1, 4, 10),
		ConstLabels: m.config.ConstLabels,
	})

	m.purgeBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "retention",
		Name:        "batches_total",
		Help:        "Batched delete flushes performed during purge_spans.",
		ConstLabels: m.config.ConstLabels,
	})

	m.purgeDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "retention",
		Name:        "keys_deleted_total",
		Help:        "Keys deleted during purge_spans, by kind (span|index).",
		ConstLabels: m.config.ConstLabels,
	}, []string{"kind"})

	m.purgeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   ns,
		Subsystem:   "retention",
		Name:        "duration_seconds",
		Help:        "purge_spans wall-clock duration in seconds.",
		Buckets:     prometheus.ExponentialBuckets(0.01, 2, 14),
		ConstLabels: m.config.ConstLabels,
	})

	m.reservationsHeld = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "undelete",
		Name:        "reservations_held_total",
		Help:        "hold_undelete calls, by whether a reservation was actually written.",
		ConstLabels: m.config.ConstLabels,
	}, []string{"outcome"})

	m.listDeletedCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   ns,
		Subsystem:   "undelete",
		Name:        "list_deleted_calls_total",
		Help:        "list_deleted calls served.",
		ConstLabels: m.config.ConstLabels,
	})

	m.registry.MustRegister(
		m.spansCommitted, m.eventsDropped, m.aggregatorFlush, m.openSpans,
		m.querySpansTotal, m.querySpansDuration, m.queryResultSize,
		m.purgeBatches, m.purgeDeleted, m.purgeDuration,
		m.reservationsHeld, m.listDeletedCalls,
	)
}

// Handler returns the HTTP handler serving this registry's metrics page.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSpanCommitted increments the committed-span counter for reason
// ("queue_id_set" is the only reason today; spans with no queue id never
// reach the store at all).
func (m *Metrics) RecordSpanCommitted(reason string) {
	if m == nil {
		return
	}
	m.spansCommitted.WithLabelValues(reason).Inc()
}

// RecordEventsDropped increments the dropped-event counter by n for reason
// ("buffer_full" or "no_span_id").
func (m *Metrics) RecordEventsDropped(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveFlush records how long one aggregator batch write took.
func (m *Metrics) ObserveFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.aggregatorFlush.Observe(d.Seconds())
}

// SetOpenSpans reports the current size of the aggregator's open-span table.
func (m *Metrics) SetOpenSpans(n int) {
	if m == nil {
		return
	}
	m.openSpans.Set(float64(n))
}

// RecordQuery records one query_spans call's latency and result size.
func (m *Metrics) RecordQuery(d time.Duration, resultSize int) {
	if m == nil {
		return
	}
	outcome := "non_empty"
	if resultSize == 0 {
		outcome = "empty"
	}
	m.querySpansTotal.WithLabelValues(outcome).Inc()
	m.querySpansDuration.Observe(d.Seconds())
	m.queryResultSize.Observe(float64(resultSize))
}

// RecordPurgeBatch records one flushed delete batch during purge_spans.
func (m *Metrics) RecordPurgeBatch(spanKeys, indexKeys int) {
	if m == nil {
		return
	}
	m.purgeBatches.Inc()
	m.purgeDeleted.WithLabelValues("span").Add(float64(spanKeys))
	m.purgeDeleted.WithLabelValues("index").Add(float64(indexKeys))
}

// ObservePurge records a full purge_spans call's wall-clock duration.
func (m *Metrics) ObservePurge(d time.Duration) {
	if m == nil {
		return
	}
	m.purgeDuration.Observe(d.Seconds())
}

// RecordHoldUndelete records one hold_undelete call, noting whether it
// actually wrote a reservation or was a no-op (no retention policy).
func (m *Metrics) RecordHoldUndelete(wrote bool) {
	if m == nil {
		return
	}
	outcome := "noop"
	if wrote {
		outcome = "reserved"
	}
	m.reservationsHeld.WithLabelValues(outcome).Inc()
}

// RecordListDeleted records one list_deleted call.
func (m *Metrics) RecordListDeleted() {
	if m == nil {
		return
	}
	m.listDeletedCalls.Inc()
}
