package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"escrowd/core/events"
	marketpkg "escrowd/native/market"
	paymentspkg "escrowd/native/payments"
)

// SettlementMetrics aggregates the counters for both settlement flows.
type SettlementMetrics struct {
	settlements *prometheus.CounterVec
	disputes    *prometheus.CounterVec
	listings    prometheus.Counter
	payments    prometheus.Counter
	purchases   prometheus.Counter
}

var (
	settlementOnce     sync.Once
	settlementRegistry *SettlementMetrics
)

// Settlement returns the process-wide settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settlement_outcomes_total",
				Help: "Count of settled escrows by flow and outcome.",
			}, []string{"flow", "outcome"}),
			disputes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settlement_disputes_total",
				Help: "Count of disputes opened by flow.",
			}, []string{"flow"}),
			listings: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_listings_created_total",
				Help: "Count of marketplace listings created.",
			}),
			payments: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_payments_created_total",
				Help: "Count of escrow payments created.",
			}),
			purchases: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "settlement_purchases_created_total",
				Help: "Count of marketplace purchases created.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.settlements,
			settlementRegistry.disputes,
			settlementRegistry.listings,
			settlementRegistry.payments,
			settlementRegistry.purchases,
		)
	})
	return settlementRegistry
}

// Recorder adapts the metrics registry to the engine event emitter interface
// so counters track state transitions without the engines knowing about
// Prometheus.
type Recorder struct {
	metrics *SettlementMetrics
	next    events.Emitter
}

// NewRecorder wraps an emitter chain with metric counting. next may be nil.
func NewRecorder(next events.Emitter) *Recorder {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &Recorder{metrics: Settlement(), next: next}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(evt events.Event) {
	if r == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case marketpkg.EventTypeListingCreated:
		r.metrics.listings.Inc()
	case marketpkg.EventTypePurchaseCreated:
		r.metrics.purchases.Inc()
	case marketpkg.EventTypePurchaseDelivered:
		r.metrics.settlements.WithLabelValues("market", "released").Inc()
	case marketpkg.EventTypePurchaseRefunded:
		r.metrics.settlements.WithLabelValues("market", "refunded").Inc()
	case marketpkg.EventTypePurchaseDisputed:
		r.metrics.disputes.WithLabelValues("market").Inc()
	case paymentspkg.EventTypePaymentCreated:
		r.metrics.payments.Inc()
	case paymentspkg.EventTypePaymentCompleted:
		r.metrics.settlements.WithLabelValues("payments", "released").Inc()
	case paymentspkg.EventTypePaymentRefunded:
		r.metrics.settlements.WithLabelValues("payments", "refunded").Inc()
	case paymentspkg.EventTypePaymentResolved:
		r.metrics.settlements.WithLabelValues("payments", "resolved").Inc()
	case paymentspkg.EventTypePaymentDisputed:
		r.metrics.disputes.WithLabelValues("payments").Inc()
	}
	r.next.Emit(evt)
}
