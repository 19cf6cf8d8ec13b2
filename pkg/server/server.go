// Package server implements the relay core (C5): it accepts client
// connections, performs the per-connection hop handshake, authorizes and
// routes end-to-end traffic between clients, and never sees plaintext
// chat content.
package server

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tchatsapp/core/pkg/registry"
)

// Timing constants for the connection lifecycle (§6).
const (
	HandshakeTimeout = 10 * time.Second
	ReadTimeout      = 30 * time.Second
	KeepAliveEvery   = 15 * time.Second
	WriteQueueDepth  = 256
)

// Authorizer decides whether one client may address another. Contact lists, group membership, and
// account existence are external bookkeeping the relay core does not
// implement itself (§1 Non-goals) — a deployment supplies its own
// Authorizer backed by whatever store it likes.
type Authorizer interface {
	// Authorize reports whether fromID may send a packet addressed to
	// toID. Returning false causes the relay to emit a MessageAck with
	// ReasonNotAuthorized instead of forwarding.
	Authorize(fromID, toID uint32) bool
}

// Metrics receives counts of relay-level events. nil-safe: every call
// site guards against a nil Metrics so wiring one in is optional.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	HandshakeFailed()
	HandshakeTimedOut()
	MessageRelayed()
	ReplayDropped()
	AuthorizationDenied()
}

// Auditor records the outcome of each routed packet for compliance or
// operational review. It never influences a routing or authorization
// decision — it is told about one after the fact, and a nil Auditor
// (the default) means nothing is recorded (§1 Non-goals: the relay
// core itself keeps no durable history).
type Auditor interface {
	RecordDelivery(fromID, toID uint32, status string, reason string)
}

// RelayServer is the central relay: one listener, one goroutine per
// connection, and a routing table from assigned client id to live
// connection.
type RelayServer struct {
	addr       string
	registry   *registry.Registry
	authorizer Authorizer
	accounts   Accounts
	groups     Groups
	metrics    Metrics
	auditor    Auditor

	listener net.Listener

	mu     sync.RWMutex
	conns  map[uint32]*Connection
	nextID uint32

	done chan struct{}
}

// Option configures a RelayServer at construction time.
type Option func(*RelayServer)

// WithAuthorizer installs the Authorizer used for routing decisions. If
// never called, every send is authorized — suitable for local testing,
// not for production deployment.
func WithAuthorizer(a Authorizer) Option {
	return func(rs *RelayServer) { rs.authorizer = a }
}

// WithMetrics installs a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(rs *RelayServer) { rs.metrics = m }
}

// WithAuditor installs an Auditor. Disabled (nil) by default.
func WithAuditor(a Auditor) Option {
	return func(rs *RelayServer) { rs.auditor = a }
}

// New creates a relay server bound to addr (host:port) once Start is
// called. reg decodes logical message bodies out of wire packets.
func New(addr string, reg *registry.Registry, opts ...Option) *RelayServer {
	rs := &RelayServer{
		addr:     addr,
		registry: reg,
		conns:    make(map[uint32]*Connection),
		nextID:   1, // 0 is reserved for wire.ServerID
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Start begins listening and accepting connections in the background.
func (rs *RelayServer) Start() error {
	ln, err := net.Listen("tcp", rs.addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	rs.listener = ln
	log.Printf("relay listening on %s", rs.addr)

	go rs.acceptLoop()
	return nil
}

// Addr returns the listener's actual address, useful when addr was given
// as "host:0" and the OS picked the port. Returns nil before Start.
func (rs *RelayServer) Addr() net.Addr {
	if rs.listener == nil {
		return nil
	}
	return rs.listener.Addr()
}

// Stop closes the listener and every open connection.
func (rs *RelayServer) Stop() error {
	close(rs.done)
	var err error
	if rs.listener != nil {
		err = rs.listener.Close()
	}

	rs.mu.Lock()
	conns := make([]*Connection, 0, len(rs.conns))
	for _, c := range rs.conns {
		conns = append(conns, c)
	}
	rs.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return err
}

func (rs *RelayServer) acceptLoop() {
	for {
		conn, err := rs.listener.Accept()
		if err != nil {
			select {
			case <-rs.done:
				return
			default:
				log.Printf("relay: accept error: %v", err)
				return
			}
		}
		go rs.handleConnection(conn)
	}
}

// assignID hands out the next client id and registers the connection
// under it.
func (rs *RelayServer) assignID(c *Connection) uint32 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	id := rs.nextID
	rs.nextID++
	c.id = id
	rs.conns[id] = c
	return id
}

func (rs *RelayServer) unregister(id uint32) {
	rs.mu.Lock()
	delete(rs.conns, id)
	rs.mu.Unlock()
}

func (rs *RelayServer) lookup(id uint32) (*Connection, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	c, ok := rs.conns[id]
	return c, ok
}

func (rs *RelayServer) metricsOrNoop() Metrics {
	if rs.metrics == nil {
		return noopMetrics{}
	}
	return rs.metrics
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()    {}
func (noopMetrics) ConnectionClosed()    {}
func (noopMetrics) HandshakeFailed()     {}
func (noopMetrics) HandshakeTimedOut()   {}
func (noopMetrics) MessageRelayed()      {}
func (noopMetrics) ReplayDropped()       {}
func (noopMetrics) AuthorizationDenied() {}
