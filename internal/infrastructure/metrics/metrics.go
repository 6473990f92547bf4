// Package metrics exposes Prometheus collectors for the bridge service.
//
// Counters and histograms are updated by the supervisor as events arrive
// and handlers complete. Session and bus statistics are read on scrape
// through Sources functions, so those packages carry no Prometheus
// dependency of their own.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/eventbus"
)

const namespace = "lutronbond"

// Dispatch outcomes used as the "outcome" label.
const (
	OutcomeHandled = "handled"
	OutcomeSkipped = "skipped"
)

// Sources supplies point-in-time statistics read on every scrape.
// Nil fields are skipped.
type Sources struct {
	Sessions func() []lutron.SessionStats
	Bus      func() eventbus.Stats
}

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal      *prometheus.CounterVec
	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	reconnectsTotal  prometheus.Counter
	openFailures     prometheus.Counter
	simulatedTotal   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New(src Sources) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lutron",
			Name:      "events_total",
			Help:      "Decoded bridge events by bridge and operation.",
		}, []string{"bridge", "operation"}),

		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Handler invocations by integration and outcome.",
		}, []string{"integration", "outcome"}), // outcome: handled, skipped

		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Handler latency in seconds, including the outbound request.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"integration"}),

		reconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "reconnects_total",
			Help:      "Times the supervisor reopened sessions after a stream ended.",
		}),

		openFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "open_failures_total",
			Help:      "Session open rounds that failed.",
		}),

		simulatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lutron",
			Name:      "simulated_events_total",
			Help:      "Events injected over MQTT by bridge.",
		}, []string{"bridge"}),
	}

	m.registry.MustRegister(
		m.eventsTotal,
		m.dispatchesTotal,
		m.dispatchDuration,
		m.reconnectsTotal,
		m.openFailures,
		m.simulatedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if src.Sessions != nil {
		m.registry.MustRegister(newSessionCollector(src.Sessions))
	}
	if src.Bus != nil {
		m.registry.MustRegister(newBusCollector(src.Bus))
	}

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveEvent counts a decoded event.
func (m *Metrics) ObserveEvent(evt lutron.Event) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(evt.Bridge, evt.Operation.String()).Inc()
}

// ObserveDispatch counts a handler invocation and records its latency.
func (m *Metrics) ObserveDispatch(integration string, handled bool, latency time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSkipped
	if handled {
		outcome = OutcomeHandled
	}
	m.dispatchesTotal.WithLabelValues(integration, outcome).Inc()
	m.dispatchDuration.WithLabelValues(integration).Observe(latency.Seconds())
}

// ObserveReconnect counts a supervisor reconnect.
func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnectsTotal.Inc()
}

// ObserveOpenFailure counts a failed open round.
func (m *Metrics) ObserveOpenFailure() {
	if m == nil {
		return
	}
	m.openFailures.Inc()
}

// ObserveSimulated counts an event injected for bridge.
func (m *Metrics) ObserveSimulated(bridge string) {
	if m == nil {
		return
	}
	m.simulatedTotal.WithLabelValues(bridge).Inc()
}
