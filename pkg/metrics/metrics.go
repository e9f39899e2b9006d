package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// CheckoutMetrics counts checkout session and webhook outcomes.
type CheckoutMetrics struct {
	sessions *prometheus.CounterVec
	duration *prometheus.HistogramVec
	webhooks *prometheus.CounterVec
}

// NewCheckoutMetrics registers the storefront collectors on reg. A nil
// registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_sessions_total",
		Help: "Checkout sessions by mode and outcome.",
	}, []string{"mode", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Time spent building checkout sessions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(sessions, duration, webhooks)
	return &CheckoutMetrics{sessions: sessions, duration: duration, webhooks: webhooks}
}

// IncCheckout records one checkout attempt.
func (m *CheckoutMetrics) IncCheckout(mode, outcome string) {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.WithLabelValues(normalizeLabel(mode), normalizeLabel(outcome)).Inc()
}

// ObserveCheckoutDuration records how long one checkout took.
func (m *CheckoutMetrics) ObserveCheckoutDuration(mode string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(mode)).Observe(d.Seconds())
}

// IncWebhook records one processed webhook delivery.
func (m *CheckoutMetrics) IncWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
