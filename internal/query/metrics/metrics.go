package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the aggregation layer.
type Metrics struct {
	// Per-domain fetch latencies during a fan-out, by view and domain
	FetchLatency *prometheus.HistogramVec

	// End-to-end latency of aggregated views
	ViewLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credreg_query_fetch_duration_seconds",
			Help:    "Duration of per-domain fetches inside aggregated views",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"view", "domain"}),

		ViewLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credreg_query_view_duration_seconds",
			Help:    "Duration of aggregated views including the fan-out",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"view"}),
	}
}

func (m *Metrics) ObserveFetch(view, domain string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(view, domain).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveView(view string, start time.Time) {
	if m != nil {
		m.ViewLatency.WithLabelValues(view).Observe(time.Since(start).Seconds())
	}
}
