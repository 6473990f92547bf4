package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/eventbus"
)

// sessionStates lists every state label so the state gauge always exposes
// a full one-hot set per bridge.
var sessionStates = []lutron.State{
	lutron.StateDisconnected,
	lutron.StateConnected,
	lutron.StateLoggingIn,
	lutron.StateReady,
}

// sessionCollector reports per-bridge session statistics on scrape.
type sessionCollector struct {
	stats func() []lutron.SessionStats

	state         *prometheus.Desc
	framesRx      *prometheus.Desc
	parseErrors   *prometheus.Desc
	commandsTx    *prometheus.Desc
	loginFailures *prometheus.Desc
	connects      *prometheus.Desc
}

func newSessionCollector(stats func() []lutron.SessionStats) *sessionCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "session", n) }
	bridge := []string{"bridge"}
	return &sessionCollector{
		stats:         stats,
		state:         prometheus.NewDesc(name("state"), "Session state, 1 for the current state.", []string{"bridge", "state"}, nil),
		framesRx:      prometheus.NewDesc(name("frames_received_total"), "Frames decoded from the bridge.", bridge, nil),
		parseErrors:   prometheus.NewDesc(name("parse_errors_total"), "Frames that failed to decode.", bridge, nil),
		commandsTx:    prometheus.NewDesc(name("commands_sent_total"), "Commands written to the bridge.", bridge, nil),
		loginFailures: prometheus.NewDesc(name("login_failures_total"), "Failed login handshakes.", bridge, nil),
		connects:      prometheus.NewDesc(name("connects_total"), "Successful dials.", bridge, nil),
	}
}

func (c *sessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.framesRx
	ch <- c.parseErrors
	ch <- c.commandsTx
	ch <- c.loginFailures
	ch <- c.connects
}

func (c *sessionCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.stats() {
		for _, st := range sessionStates {
			v := 0.0
			if st.String() == s.State {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, s.Host, st.String())
		}
		ch <- prometheus.MustNewConstMetric(c.framesRx, prometheus.CounterValue, float64(s.FramesRx), s.Host)
		ch <- prometheus.MustNewConstMetric(c.parseErrors, prometheus.CounterValue, float64(s.ParseErrors), s.Host)
		ch <- prometheus.MustNewConstMetric(c.commandsTx, prometheus.CounterValue, float64(s.CommandsTx), s.Host)
		ch <- prometheus.MustNewConstMetric(c.loginFailures, prometheus.CounterValue, float64(s.LoginFailures), s.Host)
		ch <- prometheus.MustNewConstMetric(c.connects, prometheus.CounterValue, float64(s.Connects), s.Host)
	}
}

// busCollector reports event bus counters on scrape.
type busCollector struct {
	stats func() eventbus.Stats

	published  *prometheus.Desc
	unrouted   *prometheus.Desc
	dispatched *prometheus.Desc
	panics     *prometheus.Desc
	inFlight   *prometheus.Desc
}

func newBusCollector(stats func() eventbus.Stats) *busCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "bus", n) }
	return &busCollector{
		stats:      stats,
		published:  prometheus.NewDesc(name("published_total"), "Publishes that reached at least one handler.", nil, nil),
		unrouted:   prometheus.NewDesc(name("unrouted_total"), "Publishes on topics without handlers.", nil, nil),
		dispatched: prometheus.NewDesc(name("dispatched_total"), "Handler invocations started.", nil, nil),
		panics:     prometheus.NewDesc(name("handler_panics_total"), "Handler invocations that panicked.", nil, nil),
		inFlight:   prometheus.NewDesc(name("in_flight"), "Handler invocations currently running.", nil, nil),
	}
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.unrouted
	ch <- c.dispatched
	ch <- c.panics
	ch <- c.inFlight
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(s.Published))
	ch <- prometheus.MustNewConstMetric(c.unrouted, prometheus.CounterValue, float64(s.Unrouted))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(s.Dispatched))
	ch <- prometheus.MustNewConstMetric(c.panics, prometheus.CounterValue, float64(s.Panics))
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(s.InFlight))
}
