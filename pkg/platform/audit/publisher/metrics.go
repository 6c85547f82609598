package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "credreg/pkg/platform/audit"
)

// Metrics tracks audit emission outcomes.
type Metrics struct {
	emitted         *prometheus.CounterVec
	persistFailures prometheus.Counter
	sinkFailures    prometheus.Counter
	dropped         prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credreg_audit_events_emitted_total",
			Help: "Audit events accepted by the publisher, by category",
		}, []string{"category"}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "credreg_audit_persist_failures_total",
			Help: "Failed writes to the primary audit store",
		}),
		sinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "credreg_audit_sink_failures_total",
			Help: "Failed writes to secondary audit sinks",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "credreg_audit_events_dropped_total",
			Help: "Audit events dropped because a buffer was full",
		}),
	}
}

func (m *Metrics) IncEmitted(category audit.EventCategory) {
	m.emitted.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncPersistFailures() { m.persistFailures.Inc() }
func (m *Metrics) IncSinkFailures()    { m.sinkFailures.Inc() }
func (m *Metrics) IncDropped()         { m.dropped.Inc() }
