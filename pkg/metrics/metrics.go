package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records Stripe webhook processing outcomes.
type WebhookMetrics struct {
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_event_duration_seconds",
		Help:    "Duration of webhook event handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed webhook events by type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(duration, events)
	return &WebhookMetrics{
		duration: duration,
		events:   events,
	}
}

// ObserveDuration records handling time for the given event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncResult increments the event counter for the given type and result
// ("handled", "duplicate", "skipped", "failed").
func (w *WebhookMetrics) IncResult(eventType, result string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

// SettlementMetrics records seller payout transfer outcomes.
type SettlementMetrics struct {
	duration  *prometheus.HistogramVec
	transfers *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_run_duration_seconds",
		Help:    "Duration of settlement runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"trigger"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transfers_total",
		Help: "Seller payout transfers by terminal status.",
	}, []string{"status"})
	reg.MustRegister(duration, transfers)
	return &SettlementMetrics{
		duration:  duration,
		transfers: transfers,
	}
}

// ObserveRun records the duration of a settlement run.
func (s *SettlementMetrics) ObserveRun(trigger string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(trigger)).Observe(duration.Seconds())
}

// IncTransfer increments the transfer counter for the given terminal status.
func (s *SettlementMetrics) IncTransfer(status string) {
	if s == nil || s.transfers == nil {
		return
	}
	s.transfers.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
