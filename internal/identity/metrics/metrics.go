package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	id "credreg/pkg/domain"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	UsersRegistered   *prometheus.CounterVec
	UsersDeactivated  prometheus.Counter
	UsersReactivated  prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credreg_users_registered_total",
			Help: "Total number of profiles registered, by role",
		}, []string{"role"}),
		UsersDeactivated: f.NewCounter(prometheus.CounterOpts{
			Name: "credreg_users_deactivated_total",
			Help: "Total number of profile deactivations",
		}),
		UsersReactivated: f.NewCounter(prometheus.CounterOpts{
			Name: "credreg_users_reactivated_total",
			Help: "Total number of profile reactivations",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credreg_identity_operation_duration_seconds",
			Help:    "Duration of identity registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementRegistered(role id.Role) {
	m.UsersRegistered.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) IncrementDeactivated() {
	m.UsersDeactivated.Inc()
}

func (m *Metrics) IncrementReactivated() {
	m.UsersReactivated.Inc()
}

// ObserveOperation records the duration of op. Call with time.Now() at the start.
func (m *Metrics) ObserveOperation(op string, start time.Time) {
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
