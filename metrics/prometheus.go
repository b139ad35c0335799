package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Application metrics
	appHeight      prometheus.Gauge
	txsChecked     *prometheus.CounterVec
	txsDelivered   *prometheus.CounterVec
	commits        prometheus.Counter
	commitDuration prometheus.Histogram
	queries        *prometheus.CounterVec

	// Store metrics
	proofsGenerated  prometheus.Counter
	prunes           prometheus.Counter
	prunedHeight     prometheus.Gauge
	snapshotDuration prometheus.Histogram
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		// Application metrics
		appHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "app_height",
				Help:      "Latest committed application height",
			},
		),
		txsChecked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_checked_total",
				Help:      "Total number of transactions checked",
			},
			[]string{"result"},
		),
		txsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_delivered_total",
				Help:      "Total number of transactions delivered",
			},
			[]string{"result"},
		),
		commits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Total number of completed commits",
			},
		),
		commitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time taken for a full two-level commit",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of state queries",
			},
			[]string{"module"},
		),

		// Store metrics
		proofsGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "proofs_generated_total",
				Help:      "Total number of merkle proofs generated",
			},
		),
		prunes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prunes_total",
				Help:      "Total number of pruning runs",
			},
		),
		prunedHeight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pruned_height",
				Help:      "Height floor after the last pruning run",
			},
		),
		snapshotDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_duration_seconds",
				Help:      "Time taken for snapshot exports",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

func (m *PrometheusMetrics) registerMetrics() {
	m.registry.MustRegister(
		// Application metrics
		m.appHeight,
		m.txsChecked,
		m.txsDelivered,
		m.commits,
		m.commitDuration,
		m.queries,

		// Store metrics
		m.proofsGenerated,
		m.prunes,
		m.prunedHeight,
		m.snapshotDuration,
	)
}

// Application metrics implementation

func (m *PrometheusMetrics) SetAppHeight(height uint64) {
	m.appHeight.Set(float64(height))
}

func (m *PrometheusMetrics) IncTxsChecked(result string) {
	m.txsChecked.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncTxsDelivered(result string) {
	m.txsDelivered.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncCommits() {
	m.commits.Inc()
}

func (m *PrometheusMetrics) ObserveCommitDuration(duration time.Duration) {
	m.commitDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) IncQueries(module string) {
	m.queries.WithLabelValues(module).Inc()
}

// Store metrics implementation

func (m *PrometheusMetrics) IncProofsGenerated() {
	m.proofsGenerated.Inc()
}

func (m *PrometheusMetrics) IncPrunes() {
	m.prunes.Inc()
}

func (m *PrometheusMetrics) SetPrunedHeight(height uint64) {
	m.prunedHeight.Set(float64(height))
}

func (m *PrometheusMetrics) ObserveSnapshotDuration(duration time.Duration) {
	m.snapshotDuration.Observe(duration.Seconds())
}

// HTTPHandler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
