package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. Each
// instance owns its registry so servers built in tests do not collide.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions       prometheus.Gauge
	Turns                *prometheus.CounterVec
	ValidationRejections *prometheus.CounterVec
	UpstreamFailures     *prometheus.CounterVec
	ModelLatency         *prometheus.HistogramVec
	WSMessages           *prometheus.CounterVec
	Submissions          prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions with stored history.",
		}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by outcome, reply kind and dialogue stage.",
		}, []string{"outcome", "kind", "stage"}),
		ValidationRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_rejections_total",
			Help:      "User turns rejected before reaching the model, by reason.",
		}, []string{"reason"}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Model failures replaced by the fallback reply, by provider and cause.",
		}, []string{"provider", "cause"}),
		ModelLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Model call latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}, []string{"provider"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		Submissions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requirements_submitted_total",
			Help:      "Requirement summaries submitted by users.",
		}),
	}
}

func (m *Metrics) ObserveModelLatency(provider string, d time.Duration) {
	m.ModelLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
