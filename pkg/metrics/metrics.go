package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exported by the SOS service. Each instance owns
// its own registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	triggered   prometheus.Counter
	fallbacks   prometheus.Counter
	dispatched  *prometheus.CounterVec
	texts       *prometheus.CounterVec
	calls       *prometheus.CounterVec
	superseded  prometheus.Counter
	enrichments *prometheus.CounterVec
}

// New registers the service counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_triggered_total",
			Help: "SOS triggers received.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_location_fallback_total",
			Help: "Triggers that used the fallback coordinate.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_dispatch_total",
			Help: "SOS fan-outs by result.",
		}, []string{"result"}),
		texts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_text_total",
			Help: "Text sends by result and failure reason.",
		}, []string{"result", "reason"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_call_total",
			Help: "Voice calls by result and failure reason.",
		}, []string{"result", "reason"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_superseded_total",
			Help: "In-flight triggers cancelled by a newer trigger for the same user.",
		}),
		enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_enrichment_total",
			Help: "Location enrichment lookups by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.triggered, m.fallbacks, m.dispatched, m.texts, m.calls, m.superseded, m.enrichments)
	return m
}

func (m *Metrics) IncTriggered()  { m.triggered.Inc() }
func (m *Metrics) IncFallback()   { m.fallbacks.Inc() }
func (m *Metrics) IncSuperseded() { m.superseded.Inc() }

func (m *Metrics) IncDispatched(ok bool) { m.dispatched.WithLabelValues(result(ok)).Inc() }

func (m *Metrics) IncText(ok bool, reason string) { m.texts.WithLabelValues(result(ok), reason).Inc() }

func (m *Metrics) IncCall(ok bool, reason string) { m.calls.WithLabelValues(result(ok), reason).Inc() }

func (m *Metrics) IncEnrichment(outcome string) { m.enrichments.WithLabelValues(outcome).Inc() }

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
