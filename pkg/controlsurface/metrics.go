package controlsurface

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the small set of counters/gauges SPEC_FULL.md §4.11
// asks the control surface to register, so the otherwise headless core
// is observable in development and integration environments even
// though a metrics HTTP endpoint is out of scope.
type metrics struct {
	registrationAttempts prometheus.Counter
	registrationFailures prometheus.Counter
	registered           prometheus.Gauge

	callsPlaced           prometheus.Counter
	callsRejected         prometheus.Counter
	callsTerminatedReason *prometheus.CounterVec
	activeCall            prometheus.Gauge

	rtpPacketsSent     prometheus.Counter
	rtpPacketsReceived prometheus.Counter
	rtpPacketsDropped  prometheus.Counter
}

// newMetrics registers every collector against reg. Passing a fresh
// prometheus.NewRegistry() in tests keeps repeated Surface construction
// from panicking on duplicate registration against the global default
// registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		registrationAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "registration",
			Name:      "attempts_total",
			Help:      "Register commands issued; an authenticated retry within one command is not counted separately.",
		}),
		registrationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "registration",
			Name:      "failures_total",
			Help:      "REGISTER attempts that did not end in 2xx.",
		}),
		registered: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialtone",
			Subsystem: "registration",
			Name:      "registered",
			Help:      "1 when the account is currently registered, 0 otherwise.",
		}),
		callsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "call",
			Name:      "placed_total",
			Help:      "Outbound INVITEs that reached a 2xx and started media.",
		}),
		callsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "call",
			Name:      "rejected_total",
			Help:      "Outbound INVITEs that received a non-2xx final response.",
		}),
		callsTerminatedReason: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "call",
			Name:      "terminated_total",
			Help:      "Calls terminated, labeled by the reason the core surfaced.",
		}, []string{"reason"}),
		activeCall: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialtone",
			Subsystem: "call",
			Name:      "active",
			Help:      "1 while a call is in the ACTIVE state, 0 otherwise.",
		}),
		rtpPacketsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "rtp",
			Name:      "packets_sent_total",
			Help:      "RTP packets sent across all media sessions.",
		}),
		rtpPacketsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "rtp",
			Name:      "packets_received_total",
			Help:      "RTP packets accepted across all media sessions.",
		}),
		rtpPacketsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dialtone",
			Subsystem: "rtp",
			Name:      "packets_dropped_total",
			Help:      "Inbound RTP packets discarded as malformed or off-endpoint.",
		}),
	}
}

// observeRTPStats adds one session's Stats() totals to the RTP
// counters; called once at teardown since mediasession.Stats itself
// already accumulates monotonically for the session's lifetime.
func (m *metrics) observeRTPStats(sent, received, dropped uint64) {
	m.rtpPacketsSent.Add(float64(sent))
	m.rtpPacketsReceived.Add(float64(received))
	m.rtpPacketsDropped.Add(float64(dropped))
}
