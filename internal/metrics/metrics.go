// Package metrics exposes the pipeline's Prometheus instruments. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	Classifications   *prometheus.CounterVec
	LLMFallbacks      prometheus.Counter
	Translations      *prometheus.CounterVec
	SweepFound        prometheus.Counter
	SweepEscalated    prometheus.Counter
	SweepFailed       prometheus.Counter
	SweepDuration     prometheus.Histogram
	NotificationsSent *prometheus.CounterVec
}

// New registers all instruments on a fresh registry so tests can build as
// many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartgriev_classifications_total",
			Help: "Complaints classified, by method and department code",
		}, []string{"method", "department"}),
		LLMFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartgriev_llm_fallbacks_total",
			Help: "Classifications that fell back to keyword matching after a provider failure",
		}),
		Translations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartgriev_translations_total",
			Help: "Translation attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		SweepFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartgriev_sweep_found_total",
			Help: "Complaints found eligible for escalation",
		}),
		SweepEscalated: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartgriev_sweep_escalated_total",
			Help: "Complaints escalated",
		}),
		SweepFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "smartgriev_sweep_failed_total",
			Help: "Complaints whose escalation failed",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartgriev_sweep_duration_seconds",
			Help:    "Duration of one escalation sweep",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smartgriev_notifications_total",
			Help: "Notification deliveries by channel and outcome",
		}, []string{"channel", "outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveClassification(method, department string, fellBack bool) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(method, department).Inc()
	if fellBack {
		m.LLMFallbacks.Inc()
	}
}

func (m *Metrics) ObserveTranslation(provider string, ok bool) {
	if m == nil {
		return
	}
	m.Translations.WithLabelValues(provider, outcome(ok)).Inc()
}

func (m *Metrics) ObserveSweep(found, escalated, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepFound.Add(float64(found))
	m.SweepEscalated.Add(float64(escalated))
	m.SweepFailed.Add(float64(failed))
	m.SweepDuration.Observe(seconds)
}

func (m *Metrics) ObserveNotification(channel string, ok bool) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(channel, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
