package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"credreg/internal/credential/models"
	id "credreg/pkg/domain"
)

// Metrics provides observability for issuers, records and the verification workflow.
type Metrics struct {
	IssuersRegistered *prometheus.CounterVec
	RecordsCreated    *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuersRegistered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credreg_issuers_registered_total",
			Help: "Total number of issuer registrations, by domain",
		}, []string{"domain"}),
		RecordsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credreg_records_created_total",
			Help: "Total number of credential records created, by domain",
		}, []string{"domain"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credreg_verification_transitions_total",
			Help: "Total number of verification state transitions, by domain and target state",
		}, []string{"domain", "state"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credreg_credential_operation_duration_seconds",
			Help:    "Duration of credential operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation", "domain"}),
	}
}

func (m *Metrics) IncrementIssuers(d id.Domain) {
	m.IssuersRegistered.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) IncrementRecords(d id.Domain) {
	m.RecordsCreated.WithLabelValues(string(d)).Inc()
}

func (m *Metrics) IncrementTransition(d id.Domain, to models.State) {
	m.Transitions.WithLabelValues(string(d), string(to)).Inc()
}

func (m *Metrics) ObserveOperation(op string, d id.Domain, start time.Time) {
	m.OperationDuration.WithLabelValues(op, string(d)).Observe(time.Since(start).Seconds())
}
