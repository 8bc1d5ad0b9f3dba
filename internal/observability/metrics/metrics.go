package metrics

import "github.com/prometheus/client_golang/prometheus"

// PanelMetrics exposes counters/histograms for the consultation engine.
type PanelMetrics struct {
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	stepsTotal       *prometheus.CounterVec
	completedTotal   prometheus.Counter
}

func NewPanelMetrics(reg prometheus.Registerer) *PanelMetrics {
	m := &PanelMetrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocegs",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total AI provider completion calls",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ocegs",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of AI provider completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ocegs",
			Subsystem: "consultation",
			Name:      "steps_total",
			Help:      "Consultation step invocations by phase",
		}, []string{"phase", "outcome"}),
		completedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ocegs",
			Subsystem: "consultation",
			Name:      "completed_total",
			Help:      "Consultations that reached the completed state",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.providerRequests, m.providerLatency, m.stepsTotal, m.completedTotal)
	return m
}

func (m *PanelMetrics) ObserveProviderCall(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *PanelMetrics) ObserveStep(phase, outcome string) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(phase, outcome).Inc()
}

func (m *PanelMetrics) ObserveCompleted() {
	if m == nil {
		return
	}
	m.completedTotal.Inc()
}
