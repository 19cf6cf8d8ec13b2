package server

import (
	"log"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/wire"
)

// Accounts resolves CreateUser/ConnectUser bootstrap requests. Credential
// storage and validation live outside this module (§1 Non-goals); a
// deployment supplies its own implementation. A nil Accounts makes every
// connection accept-all, assigning the connection's own id.
type Accounts interface {
	// Authenticate reports whether userID/token identify a valid
	// account, and if so the id the connection should be known by
	// (normally userID itself).
	Authenticate(userID uint32, token []byte) (assignedID uint32, ok bool)
	// Register creates a new account and returns its assigned id.
	Register(pseudo string, passwordHash []byte) (assignedID uint32, err error)
}

// Groups resolves group membership for fan-out delivery. Group
// bookkeeping lives outside this module (§1 Non-goals); a nil Groups
// means no id is ever treated as a group, so CreateGroup and friends are
// framed but never locally fanned out.
type Groups interface {
	IsGroup(id uint32) bool
	Members(id uint32) []uint32
}

// WithAccounts installs the Accounts collaborator.
func WithAccounts(a Accounts) Option {
	return func(rs *RelayServer) { rs.accounts = a }
}

// WithGroups installs the Groups collaborator.
func WithGroups(g Groups) Option {
	return func(rs *RelayServer) { rs.groups = g }
}

// dispatch is the single entry point for every packet read off a
// connection once its hop handshake has completed.
func (rs *RelayServer) dispatch(c *Connection, pkt *wire.Packet) {
	if registry.MessageType(pkt.MessageType) == registry.NONE {
		return // keep-alive
	}

	if registry.MessageType(pkt.MessageType) == registry.ServerEncrypted {
		env, err := tcrypto.DecodeEnvelope(pkt.Payload)
		if err != nil {
			log.Printf("relay: connection %d bad hop envelope: %v", c.id, err)
			return
		}
		origType, plaintext, err := c.hop.open(env)
		if err != nil {
			log.Printf("relay: connection %d hop decrypt/replay failed: %v", c.id, err)
			rs.metricsOrNoop().ReplayDropped()
			return
		}
		inner := &wire.Packet{MessageType: origType, FromID: pkt.FromID, ToID: pkt.ToID, Payload: plaintext}
		rs.dispatch(c, inner)
		return
	}

	if pkt.ToID == wire.ServerID {
		rs.handleServerDirected(c, pkt)
		return
	}

	rs.route(c, pkt)
}

func (rs *RelayServer) handleServerDirected(c *Connection, pkt *wire.Packet) {
	switch registry.MessageType(pkt.MessageType) {
	case registry.CreateUser:
		msg, err := rs.registry.Decode(registry.CreateUser, pkt.Payload)
		if err != nil {
			log.Printf("relay: connection %d bad CreateUser: %v", c.id, err)
			return
		}
		req := msg.(*messages.CreateUserMessage)

		var assignedID uint32
		var err2 error
		if rs.accounts != nil {
			assignedID, err2 = rs.accounts.Register(req.Pseudo, req.PasswordHash)
		} else {
			assignedID = c.id
		}

		ack := &messages.AckConnectionMessage{Accepted: err2 == nil, AssignedID: assignedID}
		if err2 != nil {
			ack.Reason = err2.Error()
		}
		rs.sendHopSensitive(c, registry.AckConnection, ack)

	case registry.ConnectUser:
		msg, err := rs.registry.Decode(registry.ConnectUser, pkt.Payload)
		if err != nil {
			log.Printf("relay: connection %d bad ConnectUser: %v", c.id, err)
			return
		}
		req := msg.(*messages.ConnectUserMessage)

		ack := &messages.AckConnectionMessage{}
		if rs.accounts != nil {
			assigned, ok := rs.accounts.Authenticate(req.UserID, req.AuthToken)
			ack.Accepted = ok
			ack.AssignedID = assigned
			if !ok {
				ack.Reason = "authentication failed"
			}
		} else {
			ack.Accepted = true
			ack.AssignedID = c.id
		}
		rs.sendHopSensitive(c, registry.AckConnection, ack)

	default:
		log.Printf("relay: connection %d unhandled server-directed type %d", c.id, pkt.MessageType)
	}
}

// route forwards a peer- or group-addressed packet, authorizing the
// sender against the recipient(s) and relay-encrypting any hop-sensitive
// reply the way handleServerDirected's acks are.
func (rs *RelayServer) route(c *Connection, pkt *wire.Packet) {
	if rs.groups != nil && rs.groups.IsGroup(pkt.ToID) {
		for _, member := range rs.groups.Members(pkt.ToID) {
			if member == pkt.FromID {
				continue
			}
			rs.forwardOne(c, pkt, member)
		}
		return
	}
	rs.forwardOne(c, pkt, pkt.ToID)
}

// forwardOne authorizes sender->routeTo and, if permitted, delivers pkt to
// routeTo's connection. pkt.ToID is preserved verbatim in the forwarded
// copy even when routeTo is a group member's individual connection id, so
// the recipient still sees the group id it needs to pick the right group
// key rather than mistaking the message for a direct one.
//
// KEY_EXCHANGE/KEY_EXCHANGE_RESPONSE always bypass the authorizer: a pair
// of peers with no contact relationship yet must still be able to
// bootstrap an end-to-end session (§4.5, §9), and gating the handshake
// itself on contact status would make E2E session setup impossible to
// ever establish between strangers.
func (rs *RelayServer) forwardOne(sender *Connection, pkt *wire.Packet, routeTo uint32) {
	isKeyExchange := registry.MessageType(pkt.MessageType) == registry.KeyExchange ||
		registry.MessageType(pkt.MessageType) == registry.KeyExchangeResponse

	if !isKeyExchange && rs.authorizer != nil && !rs.authorizer.Authorize(pkt.FromID, routeTo) {
		rs.metricsOrNoop().AuthorizationDenied()
		rs.auditDelivery(pkt.FromID, routeTo, messages.AckFailed, messages.ReasonNotAuthorized)
		rs.sendHopSensitive(sender, registry.MessageAck, &messages.MessageAckMessage{
			Status: messages.AckFailed,
			Reason: messages.ReasonNotAuthorized,
		})
		return
	}

	target, ok := rs.lookup(routeTo)
	if !ok {
		rs.auditDelivery(pkt.FromID, routeTo, messages.AckFailed, messages.ReasonRecipientOffline)
		rs.sendHopSensitive(sender, registry.MessageAck, &messages.MessageAckMessage{
			Status: messages.AckFailed,
			Reason: messages.ReasonRecipientOffline,
		})
		return
	}

	forwarded := &wire.Packet{MessageType: pkt.MessageType, FromID: pkt.FromID, ToID: pkt.ToID, Payload: pkt.Payload}
	target.send(forwarded)
	rs.metricsOrNoop().MessageRelayed()
	rs.auditDelivery(pkt.FromID, routeTo, messages.AckSent, messages.ReasonNone)

	rs.sendHopSensitive(sender, registry.MessageAck, &messages.MessageAckMessage{Status: messages.AckSent})
}

func (rs *RelayServer) auditDelivery(fromID, toID uint32, status messages.AckStatus, reason messages.AckFailureReason) {
	if rs.auditor == nil {
		return
	}
	rs.auditor.RecordDelivery(fromID, toID, ackStatusName(status), ackReasonName(reason))
}

func ackStatusName(s messages.AckStatus) string {
	switch s {
	case messages.AckSent:
		return "sent"
	case messages.AckFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func ackReasonName(r messages.AckFailureReason) string {
	switch r {
	case messages.ReasonNone:
		return ""
	case messages.ReasonRecipientOffline:
		return "recipient_offline"
	case messages.ReasonNotAuthorized:
		return "not_authorized"
	case messages.ReasonUnknownRecipient:
		return "unknown_recipient"
	default:
		return "unknown"
	}
}

// sendHopSensitive wraps msg in a ServerEncrypted envelope under c's hop
// session before enqueuing it, per registry.IsServerSensitive (§4.5).
// Every message type sent through this helper is in that set.
func (rs *RelayServer) sendHopSensitive(c *Connection, kind registry.MessageType, msg registry.Message) {
	if c.hop == nil {
		log.Printf("relay: connection %d has no hop session yet, dropping %d", c.id, kind)
		return
	}

	env, err := c.hop.seal(uint32(kind), msg.Encode())
	if err != nil {
		log.Printf("relay: connection %d seal failed: %v", c.id, err)
		return
	}

	c.send(&wire.Packet{
		MessageType: uint32(registry.ServerEncrypted),
		FromID:      wire.ServerID,
		ToID:        c.id,
		Payload:     env.Encode(),
	})
}
