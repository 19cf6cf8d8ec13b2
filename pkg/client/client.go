// Package client implements the stable client-exposed API (§6): connect,
// authenticate, send a message, receive one via a single dispatch
// callback, ensure an end-to-end session is established, and disconnect
// with a bounded flush.
package client

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/session"
	"github.com/tchatsapp/core/pkg/wire"
)

var (
	ErrNotConnected     = errors.New("client: not connected")
	ErrAlreadyConnected = errors.New("client: already connected")
	ErrHandshakeFailed  = errors.New("client: hop handshake failed")
	ErrAuthRejected     = errors.New("client: authentication rejected")
	ErrSessionTimeout   = errors.New("client: end-to-end handshake timed out")
)

const (
	dialTimeout     = 10 * time.Second
	responseTimeout = 10 * time.Second
	disconnectFlush = 1 * time.Second
	writeQueueDepth = 256
)

// IncomingHandler is invoked once per inbound application message, after
// any end-to-end decryption has already happened. kind is the original
// (unwrapped) registry.MessageType. There is deliberately one dispatch
// callback for every message kind rather than one field per kind — a
// caller switches on kind itself, the same way the registry is a single
// decode table rather than a type per decoder.
type IncomingHandler func(kind registry.MessageType, fromID uint32, body []byte)

// DeliveryStatusHandler is invoked when the relay acknowledges (or
// rejects) a previously sent packet. The relay only ever sees opaque
// envelopes, so it cannot echo back the application-level message id
// that SendMessage returned — MessageID is always 0 here. Callers that
// need per-message delivery tracking must correlate by send order or by
// an application-level ack carried inside the end-to-end payload itself.
type DeliveryStatusHandler func(status messages.AckStatus, reason messages.AckFailureReason)

// Client is one connection to a relay server.
type Client struct {
	addr     string
	localID  uint32
	registry *registry.Registry

	sessions *session.Manager

	onIncoming IncomingHandler
	onStatus   DeliveryStatusHandler

	mu     sync.Mutex
	conn   net.Conn
	hop    *hopClientSession
	connID uint32 // our own id, once Authenticate succeeds

	writeCh chan *wire.Packet
	closed  chan struct{}
	wg      sync.WaitGroup

	pending *pendingTable

	nextMessageID uint64
}

// New creates a client that will connect to addr (host:port) as localID
// once Connect is called. localID is the client's own claimed id; the
// relay may override it in the AckConnection returned by Authenticate,
// in which case the end-to-end session manager is rebuilt under the
// assigned id — the crossed-HELLO tiebreak (§4.3) depends on from_id
// matching what actually goes out on the wire, not the id a client
// merely requested.
func New(addr string, reg *registry.Registry, localID uint32) *Client {
	return &Client{
		addr:     addr,
		localID:  localID,
		connID:   localID,
		registry: reg,
		sessions: session.NewManager(localID, session.StrictMonotonic),
		pending:  newPendingTable(),
	}
}

// OnIncoming registers the callback invoked for every decrypted
// application message. Replacing it is not goroutine-safe against a
// concurrently running read loop; register it before Connect.
func (c *Client) OnIncoming(h IncomingHandler) { c.onIncoming = h }

// OnDeliveryStatus registers the callback invoked for relay-level
// delivery acks. Register it before Connect.
func (c *Client) OnDeliveryStatus(h DeliveryStatusHandler) { c.onStatus = h }

// Connect dials the relay and performs the per-connection hop handshake
// (§4.5). No application traffic may be sent before Connect returns
// successfully.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("client: dial: %w", err)
	}

	hop, err := performHopHandshake(conn, c.registry)
	if err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.hop = hop
	c.writeCh = make(chan *wire.Packet, writeQueueDepth)
	c.closed = make(chan struct{})
	c.mu.Unlock()

	c.wg.Add(2)
	go c.writeLoop()
	go c.readLoop()

	log.Printf("client: connected to %s", c.addr)
	return nil
}

// Disconnect closes the connection, giving any already-queued outbound
// packets up to disconnectFlush to reach the socket before the write
// loop is torn down.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	select {
	case <-time.After(disconnectFlush):
	case <-drainedSignal(c.writeCh):
	}

	close(closed)
	err := conn.Close()
	c.wg.Wait()
	return err
}

// drainedSignal returns a channel that closes once ch is observed empty.
// It is a best-effort flush check, not a guarantee against a concurrent
// sender racing new packets in.
func drainedSignal(ch chan *wire.Packet) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for len(ch) > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		close(done)
	}()
	return done
}

func (c *Client) send(pkt *wire.Packet) error {
	c.mu.Lock()
	ch := c.writeCh
	c.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}
	select {
	case ch <- pkt:
		return nil
	default:
		return fmt.Errorf("client: write queue full")
	}
}

func (c *Client) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case pkt := <-c.writeCh:
			if err := wire.Write(c.conn, pkt); err != nil {
				log.Printf("client: write error: %v", err)
				return
			}
		case <-c.closed:
			return
		}
	}
}
