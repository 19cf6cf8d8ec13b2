package server

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/wire"
)

// Connection is one client's live TCP link to the relay: its assigned
// client id, hop session, and a bounded outbound write queue served by
// its own goroutine (one accept-loop goroutine plus one writer goroutine
// per connection, per §6's concurrency model).
type Connection struct {
	rs   *RelayServer
	conn net.Conn
	id   uint32

	hop *hopSession

	writeCh   chan *wire.Packet
	closeOnce sync.Once
	closed    chan struct{}
}

func (rs *RelayServer) handleConnection(netConn net.Conn) {
	c := &Connection{
		rs:      rs,
		conn:    netConn,
		writeCh: make(chan *wire.Packet, WriteQueueDepth),
		closed:  make(chan struct{}),
	}
	id := rs.assignID(c)
	rs.metricsOrNoop().ConnectionOpened()

	log.Printf("relay: connection %d from %s", id, netConn.RemoteAddr())

	go c.writeLoop()
	go c.keepAliveLoop()

	defer func() {
		c.Close()
		rs.unregister(id)
		rs.metricsOrNoop().ConnectionClosed()
		log.Printf("relay: connection %d closed", id)
	}()

	if err := c.performHopHandshake(); err != nil {
		log.Printf("relay: connection %d handshake failed: %v", id, err)
		if errors.Is(err, errHandshakeTimeout) {
			rs.metricsOrNoop().HandshakeTimedOut()
		} else {
			rs.metricsOrNoop().HandshakeFailed()
		}
		return
	}

	c.readLoop()
}

var errHandshakeTimeout = errors.New("server: handshake timed out")

// performHopHandshake waits for the client's SERVER_KEY_EXCHANGE and
// replies with our half, establishing this connection's hop session
// before any other traffic is accepted.
func (c *Connection) performHopHandshake() error {
	c.conn.SetReadDeadline(time.Now().Add(HandshakeTimeout))

	pkt, err := wire.Read(c.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return errHandshakeTimeout
		}
		return fmt.Errorf("server: read hello: %w", err)
	}
	if pkt.MessageType != uint32(registry.ServerKeyExchange) {
		return fmt.Errorf("server: expected SERVER_KEY_EXCHANGE, got type %d", pkt.MessageType)
	}

	msg, err := c.rs.registry.Decode(registry.ServerKeyExchange, pkt.Payload)
	if err != nil {
		return fmt.Errorf("server: decode hello: %w", err)
	}
	hello, ok := msg.(*messages.ServerKeyExchangeMessage)
	if !ok {
		return fmt.Errorf("server: unexpected hello body type %T", msg)
	}

	serverPub, hop, err := completeHopHandshake(hello.PublicKey, c.id)
	if err != nil {
		return err
	}
	c.hop = hop

	reply := &messages.ServerKeyExchangeResponseMessage{PublicKey: serverPub}
	replyPkt := &wire.Packet{
		MessageType: uint32(registry.ServerKeyExchangeResponse),
		FromID:      wire.ServerID,
		ToID:        c.id,
		Payload:     reply.Encode(),
	}
	return wire.Write(c.conn, replyPkt)
}

// readLoop processes packets after the hop handshake has established a
// session key, until the connection errors out or is closed.
func (c *Connection) readLoop() {
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
		pkt, err := wire.Read(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("relay: connection %d read error: %v", c.id, err)
			}
			return
		}

		c.rs.dispatch(c, pkt)
	}
}

// send enqueues an outgoing packet. If the queue is already full the
// connection is too slow a reader to keep up and is closed rather than
// letting memory grow unbounded (§6 backpressure policy).
func (c *Connection) send(pkt *wire.Packet) {
	select {
	case c.writeCh <- pkt:
	default:
		log.Printf("relay: connection %d write queue full, closing", c.id)
		c.Close()
	}
}

func (c *Connection) writeLoop() {
	for {
		select {
		case pkt, ok := <-c.writeCh:
			if !ok {
				return
			}
			if err := wire.Write(c.conn, pkt); err != nil {
				log.Printf("relay: connection %d write error: %v", c.id, err)
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) keepAliveLoop() {
	ticker := time.NewTicker(KeepAliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.send(&wire.Packet{MessageType: uint32(registry.NONE), FromID: wire.ServerID, ToID: c.id})
		case <-c.closed:
			return
		}
	}
}

// Close shuts down the connection exactly once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}
