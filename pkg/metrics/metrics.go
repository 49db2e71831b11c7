package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wiretap"

// Metrics holds the collectors for one recorder.
type Metrics struct {
	registry *prometheus.Registry

	captured        *prometheus.CounterVec
	completed       *prometheus.CounterVec
	duration        prometheus.Histogram
	truncated       *prometheus.CounterVec
	storeRecords    prometheus.Gauge
	dropped         *prometheus.CounterVec
	persisted       *prometheus.CounterVec
	persistDuration prometheus.Histogram
	misses          prometheus.Counter
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		captured: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_captured_total",
			Help:      "Number of outgoing requests captured",
		}, []string{"method"}),
		completed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Number of captured requests that completed, by status category",
		}, []string{"category"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time between a request being observed and its completion",
			Buckets:   prometheus.DefBuckets,
		}),
		truncated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bodies_truncated_total",
			Help:      "Number of bodies cut at the configured size cap",
		}, []string{"direction"}),
		storeRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Number of records currently held in the log",
		}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_ops_dropped_total",
			Help:      "Number of store mutations dropped because the queue was full",
		}, []string{"op"}),
		persisted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_total",
			Help:      "Number of snapshot saves, by result",
		}, []string{"result"}),
		persistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent encoding and saving a snapshot",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "correlation_misses_total",
			Help:      "Number of completions whose record was no longer in the log",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RequestCaptured(method string) {
	if m == nil {
		return
	}
	m.captured.WithLabelValues(method).Inc()
}

func (m *Metrics) RequestCompleted(category string, d *time.Duration) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(category).Inc()
	if d != nil {
		m.duration.Observe(d.Seconds())
	}
}

// BodyTruncated counts a capped body. direction is "request" or "response".
func (m *Metrics) BodyTruncated(direction string) {
	if m == nil {
		return
	}
	m.truncated.WithLabelValues(direction).Inc()
}

func (m *Metrics) StoreSize(n int) {
	if m == nil {
		return
	}
	m.storeRecords.Set(float64(n))
}

func (m *Metrics) OpDropped(op string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(op).Inc()
}

// Persisted records one snapshot save and its outcome.
func (m *Metrics) Persisted(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persisted.WithLabelValues(result).Inc()
	m.persistDuration.Observe(d.Seconds())
}

func (m *Metrics) CorrelationMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}
