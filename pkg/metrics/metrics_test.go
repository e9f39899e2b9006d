package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.IncCheckout("test", OutcomeSuccess)
	m.IncCheckout("test", OutcomeSuccess)
	m.IncCheckout("live", OutcomeConflict)
	m.ObserveCheckoutDuration("test", 150*time.Millisecond)
	m.IncWebhook("checkout.session.completed", OutcomeDuplicate)
	m.IncWebhook("", OutcomeIgnored)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "storefront_checkout_sessions_total", map[string]string{"mode": "test", "outcome": OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "storefront_checkout_sessions_total", map[string]string{"mode": "live", "outcome": OutcomeConflict})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "storefront_webhook_events_total", map[string]string{"type": "unknown", "outcome": OutcomeIgnored})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "storefront_checkout_duration_seconds")
	require.NotNil(t, mf)
	assert.Greater(t, mf.GetMetric()[0].GetHistogram().GetSampleSum(), 0.0)
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewCheckoutMetrics(nil)
	assert.NotPanics(t, func() {
		m.IncCheckout("test", OutcomeSuccess)
		m.IncWebhook("x", OutcomeError)
		m.ObserveCheckoutDuration("test", time.Second)
	})

	var nilMetrics *CheckoutMetrics
	assert.NotPanics(t, func() { nilMetrics.IncCheckout("test", OutcomeSuccess) })
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("stale-checkout")
	m.IncFailure("stale-checkout")
	m.IncFailure("")
	m.ObserveDuration("stale-checkout", 2*time.Second)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "storefront_cron_job_runs_total", map[string]string{"job": "stale-checkout", "outcome": OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "storefront_cron_job_runs_total", map[string]string{"job": "unknown", "outcome": OutcomeError})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "storefront_cron_job_duration_seconds")
	require.NotNil(t, mf)
	assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Inc("order.paid", OutboxPublished)
	m.Inc("order.paid", OutboxPublished)
	m.Inc("order.cancelled", OutboxParked)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "storefront_outbox_events_total", map[string]string{"event_type": "order.paid", "outcome": OutboxPublished})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "storefront_outbox_events_total", map[string]string{"event_type": "order.cancelled", "outcome": OutboxParked})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	var nilMetrics *OutboxMetrics
	assert.NotPanics(t, func() { nilMetrics.Inc("order.paid", OutboxRetried) })
}
