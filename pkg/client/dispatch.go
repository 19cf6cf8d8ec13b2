package client

import (
	"errors"
	"io"
	"log"
	"sync"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/wire"
)

// pendingTable correlates the handful of request/response exchanges that
// need a synchronous caller-facing result (AckConnection for
// Authenticate, KeyExchangeResponse for EnsureSession) even though the
// wire protocol carries no generic request id. At most one AckConnection
// wait and one KeyExchangeResponse wait per peer id are outstanding at a
// time.
type pendingTable struct {
	mu      sync.Mutex
	connAck chan *messages.AckConnectionMessage
	kxReply map[uint32]chan *messages.KeyExchangeResponseMessage
}

func newPendingTable() *pendingTable {
	return &pendingTable{kxReply: make(map[uint32]chan *messages.KeyExchangeResponseMessage)}
}

func (p *pendingTable) awaitConnAck() chan *messages.AckConnectionMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *messages.AckConnectionMessage, 1)
	p.connAck = ch
	return ch
}

func (p *pendingTable) resolveConnAck(m *messages.AckConnectionMessage) {
	p.mu.Lock()
	ch := p.connAck
	p.connAck = nil
	p.mu.Unlock()
	if ch != nil {
		ch <- m
	}
}

func (p *pendingTable) awaitKeyExchangeReply(peerID uint32) chan *messages.KeyExchangeResponseMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *messages.KeyExchangeResponseMessage, 1)
	p.kxReply[peerID] = ch
	return ch
}

func (p *pendingTable) resolveKeyExchangeReply(peerID uint32, m *messages.KeyExchangeResponseMessage) {
	p.mu.Lock()
	ch := p.kxReply[peerID]
	delete(p.kxReply, peerID)
	p.mu.Unlock()
	if ch != nil {
		ch <- m
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()
	for {
		pkt, err := wire.Read(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("client: read error: %v", err)
			}
			return
		}
		c.dispatch(pkt)
	}
}

func (c *Client) dispatch(pkt *wire.Packet) {
	if registry.MessageType(pkt.MessageType) == registry.NONE {
		return // keep-alive
	}

	if registry.MessageType(pkt.MessageType) == registry.ServerEncrypted {
		env, err := tcrypto.DecodeEnvelope(pkt.Payload)
		if err != nil {
			log.Printf("client: bad hop envelope: %v", err)
			return
		}
		origType, plaintext, err := c.hop.open(env)
		if err != nil {
			log.Printf("client: hop decrypt/replay failed: %v", err)
			return
		}
		inner := &wire.Packet{MessageType: uint32(origType), FromID: pkt.FromID, ToID: pkt.ToID, Payload: plaintext}
		c.dispatch(inner)
		return
	}

	kind := registry.MessageType(pkt.MessageType)
	msg, err := c.registry.Decode(kind, pkt.Payload)
	if err != nil {
		log.Printf("client: dropping undecodable packet type %d: %v", pkt.MessageType, err)
		return
	}

	switch kind {
	case registry.AckConnection:
		c.pending.resolveConnAck(msg.(*messages.AckConnectionMessage))

	case registry.MessageAck:
		ack := msg.(*messages.MessageAckMessage)
		if c.onStatus != nil {
			c.onStatus(ack.Status, ack.Reason)
		}

	case registry.KeyExchange:
		c.handleIncomingHello(pkt.FromID, msg.(*messages.KeyExchangeMessage))

	case registry.KeyExchangeResponse:
		c.pending.resolveKeyExchangeReply(pkt.FromID, msg.(*messages.KeyExchangeResponseMessage))

	case registry.Encrypted:
		c.handleEncrypted(pkt.FromID, pkt.ToID, pkt.Payload)

	default:
		if c.onIncoming != nil {
			c.onIncoming(kind, pkt.FromID, pkt.Payload)
		}
	}
}

// handleIncomingHello answers a peer-initiated handshake. If the peer
// address already has an outstanding HELLO of our own, session.Manager's
// crossed-HELLO tiebreak decides whether we reply or keep ours.
func (c *Client) handleIncomingHello(fromID uint32, hello *messages.KeyExchangeMessage) {
	reply, shouldReply, err := c.sessions.HandleHello(fromID, hello.PublicKey, hello.Salt)
	if err != nil {
		log.Printf("client: handshake with %d failed: %v", fromID, err)
		return
	}
	if !shouldReply {
		return
	}
	resp := &messages.KeyExchangeResponseMessage{PublicKey: reply}
	_ = c.send(&wire.Packet{
		MessageType: uint32(registry.KeyExchangeResponse),
		FromID:      c.connID,
		ToID:        fromID,
		Payload:     resp.Encode(),
	})
}

// handleEncrypted unwraps an end-to-end envelope and hands the original
// application message to the registered incoming handler.
func (c *Client) handleEncrypted(fromID, toID uint32, payload []byte) {
	env, err := tcrypto.DecodeEnvelope(payload)
	if err != nil {
		log.Printf("client: bad envelope from %d: %v", fromID, err)
		return
	}
	origType, plaintext, err := c.sessions.Decrypt(fromID, env)
	if err != nil {
		log.Printf("client: decrypt from %d failed: %v", fromID, err)
		return
	}
	if c.onIncoming != nil {
		c.onIncoming(origType, fromID, plaintext)
	}
}
