package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OpComputeTotals   = "compute_totals"
	OpRecalcDiscounts = "recalc_discounts"
	OpManualDiscount  = "manual_discount"
)

const (
	EventShippingUnmatched = "shipping_unmatched"
	EventEnrichmentSkipped = "enrichment_skipped"
	EventDiscountMismatch  = "discount_mismatch"
	EventSubtotalMismatch  = "subtotal_mismatch"
	EventFreeShippingGrant = "free_shipping_granted"
	EventOrderPersisted    = "order_persisted"
)

// PricingMetrics records latency and outcomes of pricing engine operations.
type PricingMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "orderdesk",
		Name:      "pricing_duration_seconds",
		Help:      "Duration of pricing operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Name:      "pricing_success_total",
		Help:      "Successful pricing operations.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Name:      "pricing_failure_total",
		Help:      "Failed pricing operations.",
	}, []string{"operation"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderdesk",
		Name:      "pricing_events_total",
		Help:      "Notable pricing outcomes such as unmatched shipping or skipped enrichment.",
	}, []string{"event"})
	reg.MustRegister(duration, success, failure, events)
	return &PricingMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		events:   events,
	}
}

// Track observes the duration since start and counts the outcome of op.
func (m *PricingMetrics) Track(op string, start time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	op = normalizeLabel(op)
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failure.WithLabelValues(op).Inc()
		return
	}
	m.success.WithLabelValues(op).Inc()
}

// IncEvent counts a named pricing event.
func (m *PricingMetrics) IncEvent(event string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(event)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
