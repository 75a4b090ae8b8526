package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics counts captures and the post-capture side effects that
// can leave a paid order without a record or a fulfillment order.
type CheckoutMetrics struct {
	captures         prometheus.Counter
	recordFailures   prometheus.Counter
	dispatchFailures prometheus.Counter
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	captures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_payment_captures_total",
		Help: "Payments captured successfully.",
	})
	recordFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_order_record_failure_total",
		Help: "Captured payments whose order record could not be written.",
	})
	dispatchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_fulfillment_dispatch_failure_total",
		Help: "Captured payments whose fulfillment order was not accepted. Requires manual reconciliation.",
	})
	reg.MustRegister(captures, recordFailures, dispatchFailures)
	return &CheckoutMetrics{
		captures:         captures,
		recordFailures:   recordFailures,
		dispatchFailures: dispatchFailures,
	}
}

func (m *CheckoutMetrics) IncCapture() {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.Inc()
}

func (m *CheckoutMetrics) IncRecordFailure() {
	if m == nil || m.recordFailures == nil {
		return
	}
	m.recordFailures.Inc()
}

func (m *CheckoutMetrics) IncDispatchFailure() {
	if m == nil || m.dispatchFailures == nil {
		return
	}
	m.dispatchFailures.Inc()
}
