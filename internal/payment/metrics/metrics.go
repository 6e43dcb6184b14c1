package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook outcomes used as label values.
const (
	OutcomeUnlocked         = "unlocked"
	OutcomeIgnored          = "ignored"
	OutcomeDropped          = "dropped"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeError            = "error"
)

// Metrics holds Prometheus metrics for the payment flow.
type Metrics struct {
	SessionsCreated prometheus.Counter
	WebhookEvents   *prometheus.CounterVec
}

// New creates and registers all payment metrics.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "akashic_payment_sessions_created_total",
			Help: "Total number of checkout sessions created",
		}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "akashic_payment_webhook_events_total",
			Help: "Total number of webhook events received, by provider and outcome",
		}, []string{"provider", "outcome"}),
	}
}

// ObserveWebhook records one webhook delivery outcome.
func (m *Metrics) ObserveWebhook(provider, outcome string) {
	m.WebhookEvents.WithLabelValues(provider, outcome).Inc()
}
