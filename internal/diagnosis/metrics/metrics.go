package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the diagnosis lifecycle.
type Metrics struct {
	Created          *prometheus.CounterVec
	Unlocked         prometheus.Counter
	Views            *prometheus.CounterVec
	CreationDuration prometheus.Histogram
}

// New creates and registers all diagnosis metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akashic_diagnoses_created_total",
			Help: "Total number of diagnoses created, by tier",
		}, []string{"tier"}),
		Unlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "akashic_diagnoses_unlocked_total",
			Help: "Total number of diagnosis unlock transitions (first unlock only)",
		}),
		Views: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akashic_diagnosis_views_total",
			Help: "Total number of diagnosis views, by visibility",
		}, []string{"visibility"}),
		CreationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "akashic_diagnosis_creation_duration_seconds",
			Help:    "Latency of diagnosis creation including the completion API call",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveCreation records a successful creation with its duration.
func (m *Metrics) ObserveCreation(tier string, start time.Time) {
	m.Created.WithLabelValues(tier).Inc()
	m.CreationDuration.Observe(time.Since(start).Seconds())
}
