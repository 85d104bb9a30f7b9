package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hypergrid"

// collectors 遥测的 Prometheus 收集器
type collectors struct {
	registry *prometheus.Registry

	samples      prometheus.Counter
	dropped      prometheus.Counter
	foldDuration prometheus.Histogram
	sessions     prometheus.Gauge
	latency      prometheus.Summary
}

func newCollectors() *collectors {
	c := &collectors{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_total",
			Help:      "Metric samples ingested from the render pool.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "samples_dropped_total",
			Help:      "Samples discarded because the fold buffer was full.",
		}),
		foldDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "fold_duration_seconds",
			Help:      "Time spent folding buffered samples into aggregates.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "sessions",
			Help:      "Sessions with at least one folded sample.",
		}),
		latency: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  namespace,
			Subsystem:  "telemetry",
			Name:       "latency_ms",
			Help:       "Reported session latency in milliseconds.",
			Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
		}),
	}
	c.registry.MustRegister(c.samples, c.dropped, c.foldDuration, c.sessions, c.latency)
	return c
}
