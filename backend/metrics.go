package backend

import (
	"time"

	"github.com/mwantia/folders/data"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics receives telemetry of one backend instance. It is injected
// instead of using package-level counters.
type Metrics interface {
	ObserveOperation(backend string, op Capability, err error, duration time.Duration)
	AddBytesRead(backend string, n int64)
	AddBytesWritten(backend string, n int64)
	ObserveEnrichmentFailure(backend string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, Capability, error, time.Duration) {}
func (nopMetrics) AddBytesRead(string, int64)                               {}
func (nopMetrics) AddBytesWritten(string, int64)                            {}
func (nopMetrics) ObserveEnrichmentFailure(string)                          {}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}

// PrometheusMetrics exports operation counters on a caller-owned registerer.
type PrometheusMetrics struct {
	operations       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	bytesRead        *prometheus.CounterVec
	bytesWritten     *prometheus.CounterVec
	enrichmentErrors *prometheus.CounterVec
}

// NewPrometheusMetrics registers all collectors on reg. Use a fresh
// prometheus.NewRegistry() per instance in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folders",
			Name:      "operations_total",
			Help:      "Total backend operations by result kind.",
		}, []string{"backend", "op", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "folders",
			Name:      "operation_duration_seconds",
			Help:      "Backend operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		bytesRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folders",
			Name:      "read_bytes_total",
			Help:      "Bytes streamed out of backends.",
		}, []string{"backend"}),
		bytesWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folders",
			Name:      "written_bytes_total",
			Help:      "Bytes streamed into backends.",
		}, []string{"backend"}),
		enrichmentErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folders",
			Name:      "enrichment_failures_total",
			Help:      "Best-effort listing enrichments that failed.",
		}, []string{"backend"}),
	}
}

func (pm *PrometheusMetrics) ObserveOperation(backend string, op Capability, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = string(data.KindOf(err))
	}

	pm.operations.WithLabelValues(backend, string(op), result).Inc()
	pm.duration.WithLabelValues(backend, string(op)).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) AddBytesRead(backend string, n int64) {
	pm.bytesRead.WithLabelValues(backend).Add(float64(n))
}

func (pm *PrometheusMetrics) AddBytesWritten(backend string, n int64) {
	pm.bytesWritten.WithLabelValues(backend).Add(float64(n))
}

func (pm *PrometheusMetrics) ObserveEnrichmentFailure(backend string) {
	pm.enrichmentErrors.WithLabelValues(backend).Inc()
}
