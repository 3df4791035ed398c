package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics tracks reconciliation outcomes for gateway webhook events.
type WebhookMetrics struct {
	processed *prometheus.CounterVec
	duplicate prometheus.Counter
	unmatched prometheus.Counter
	rejected  prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_processed",
		Help: "Webhook events reconciled against the order ledger, by event type.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook events skipped because the event ID was already seen.",
	})
	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_unmatched",
		Help: "Webhook events whose payment intent matched no order.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected for a bad signature.",
	})
	reg.MustRegister(processed, duplicate, unmatched, rejected)
	return &WebhookMetrics{
		processed: processed,
		duplicate: duplicate,
		unmatched: unmatched,
		rejected:  rejected,
	}
}

// IncProcessed increments the processed counter for the given event type.
func (w *WebhookMetrics) IncProcessed(eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate-delivery counter.
func (w *WebhookMetrics) IncDuplicate() {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.Inc()
}

// IncUnmatched increments the unmatched-intent counter.
func (w *WebhookMetrics) IncUnmatched() {
	if w == nil || w.unmatched == nil {
		return
	}
	w.unmatched.Inc()
}

// IncRejected increments the bad-signature counter.
func (w *WebhookMetrics) IncRejected() {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.Inc()
}
