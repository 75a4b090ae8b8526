package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics records calls made to the payment and fulfillment APIs.
type UpstreamMetrics struct {
	duration *prometheus.HistogramVec
}

func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	if reg == nil {
		return &UpstreamMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_upstream_request_duration_seconds",
		Help:    "Latency of upstream API calls by outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "outcome"})
	reg.MustRegister(duration)
	return &UpstreamMetrics{duration: duration}
}

// Observe records one call. outcome is a short label such as ok, error or
// a status class like 4xx.
func (m *UpstreamMetrics) Observe(upstream, outcome string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(upstream), normalizeLabel(outcome)).Observe(d.Seconds())
}
