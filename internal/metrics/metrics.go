// Package metrics exports import pipeline instrumentation to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JonMunkholm/cms/internal/core"
)

const namespace = "cms"

var _ core.Metrics = (*Import)(nil)

// Import implements core.Metrics.
type Import struct {
	rows         *prometheus.CounterVec
	batchRecords prometheus.Histogram
	batchLatency prometheus.Histogram
	runs         *prometheus.CounterVec
	runLatency   *prometheus.HistogramVec
}

// New registers the import metrics with reg.
func New(reg prometheus.Registerer) *Import {
	f := promauto.With(reg)
	return &Import{
		rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Rows processed by imports, by outcome (accepted or skip reason).",
		}, []string{"outcome"}),
		batchRecords: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batch_records",
			Help:      "Records written per flushed batch.",
			Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2500},
		}),
		batchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "batch_flush_seconds",
			Help:      "Latency of batch flushes.",
			Buckets: []float64{
				0.005, 0.01, 0.025, 0.05,
				0.1, 0.25, 0.5,
				1, 2.5, 5, 10,
			},
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "runs_total",
			Help:      "Finished import runs by status.",
		}, []string{"status"}),
		runLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "run_seconds",
			Help:      "Duration of import runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"status"}),
	}
}

func (m *Import) RowProcessed(outcome string) {
	m.rows.WithLabelValues(outcome).Inc()
}

func (m *Import) BatchFlushed(size int, d time.Duration) {
	m.batchRecords.Observe(float64(size))
	m.batchLatency.Observe(d.Seconds())
}

func (m *Import) ImportFinished(status core.ImportStatus, d time.Duration) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.runLatency.WithLabelValues(string(status)).Observe(d.Seconds())
}

// RegisterLimiter exports the import limiter occupancy as gauges.
func RegisterLimiter(reg prometheus.Registerer, l *core.ImportLimiter) {
	f := promauto.With(reg)
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "active",
		Help:      "Imports currently running.",
	}, func() float64 { return float64(l.ActiveCount()) })
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "import",
		Name:      "max_concurrent",
		Help:      "Configured import concurrency limit.",
	}, func() float64 { return float64(l.Status().MaxConcurrent) })
}
