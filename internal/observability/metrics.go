package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the relay.
type Metrics struct {
	RelayRequests       *prometheus.CounterVec
	ProviderErrors      *prometheus.CounterVec
	ProviderLatency     prometheus.Histogram
	SessionsProvisioned prometheus.Counter
	EmailSends          *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RelayRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relay requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Avatar provider errors by endpoint and code.",
		}, []string{"endpoint", "code"}),
		ProviderLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_ms",
			Help:      "Avatar provider call latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 800, 1500, 3000, 6000},
		}),
		SessionsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_provisioned_total",
			Help:      "Avatar sessions successfully provisioned.",
		}),
		EmailSends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_sends_total",
			Help:      "Invitation email sends by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveProviderLatency(d time.Duration) {
	m.ProviderLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
