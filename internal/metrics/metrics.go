// Package metrics implements pkg/server.Metrics against Prometheus
// counters, backing the admin surface's /metrics endpoint (C6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Relay is a Prometheus-backed pkg/server.Metrics. The zero value is not
// usable; construct with New so every counter is registered.
type Relay struct {
	connectionsOpened   prometheus.Counter
	connectionsClosed   prometheus.Counter
	handshakeFailed     prometheus.Counter
	handshakeTimedOut   prometheus.Counter
	messagesRelayed     prometheus.Counter
	replayDropped       prometheus.Counter
	authorizationDenied prometheus.Counter
}

// New creates a Relay and registers its counters with reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer)
// keeps this relay's counters isolated from whatever else shares the
// process, matching how the admin surface owns its own registry.
func New(reg prometheus.Registerer) *Relay {
	r := &Relay{
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "connections_opened_total",
			Help:      "Total TCP connections accepted by the relay.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "connections_closed_total",
			Help:      "Total connections that have been closed, for any reason.",
		}),
		handshakeFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "handshake_failed_total",
			Help:      "Hop handshakes that failed before completing (bad message, decode error).",
		}),
		handshakeTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "handshake_timed_out_total",
			Help:      "Hop handshakes that did not complete within the handshake timeout.",
		}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "messages_relayed_total",
			Help:      "Packets successfully forwarded to a live recipient connection.",
		}),
		replayDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "replay_dropped_total",
			Help:      "Hop-encrypted packets dropped for failing decryption or the replay window.",
		}),
		authorizationDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tchatsapp",
			Subsystem: "relay",
			Name:      "authorization_denied_total",
			Help:      "Forwards denied by the configured Authorizer.",
		}),
	}

	reg.MustRegister(
		r.connectionsOpened,
		r.connectionsClosed,
		r.handshakeFailed,
		r.handshakeTimedOut,
		r.messagesRelayed,
		r.replayDropped,
		r.authorizationDenied,
	)
	return r
}

func (r *Relay) ConnectionOpened()    { r.connectionsOpened.Inc() }
func (r *Relay) ConnectionClosed()    { r.connectionsClosed.Inc() }
func (r *Relay) HandshakeFailed()     { r.handshakeFailed.Inc() }
func (r *Relay) HandshakeTimedOut()   { r.handshakeTimedOut.Inc() }
func (r *Relay) MessageRelayed()      { r.messagesRelayed.Inc() }
func (r *Relay) ReplayDropped()       { r.replayDropped.Inc() }
func (r *Relay) AuthorizationDenied() { r.authorizationDenied.Inc() }
