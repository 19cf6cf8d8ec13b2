package client

import (
	"fmt"
	"time"

	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/session"
	"github.com/tchatsapp/core/pkg/wire"
)

// Authenticate sends ConnectUser (an existing account) and waits for the
// relay's AckConnection, updating the client's own id if the relay
// assigns a different one than it was constructed with.
func (c *Client) Authenticate(userID uint32, token []byte) (assignedID uint32, err error) {
	return c.bootstrap(registry.ConnectUser, &messages.ConnectUserMessage{UserID: userID, AuthToken: token})
}

// Register sends CreateUser (a brand new account) and waits for the
// relay's AckConnection the same way Authenticate does.
func (c *Client) Register(pseudo string, passwordHash []byte) (assignedID uint32, err error) {
	return c.bootstrap(registry.CreateUser, &messages.CreateUserMessage{Pseudo: pseudo, PasswordHash: passwordHash})
}

func (c *Client) bootstrap(kind registry.MessageType, msg registry.Message) (uint32, error) {
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return 0, ErrNotConnected
	}
	c.mu.Unlock()

	waiter := c.pending.awaitConnAck()

	env, err := c.hop.seal(kind, msg.Encode())
	if err != nil {
		return 0, fmt.Errorf("client: seal bootstrap request: %w", err)
	}
	if err := c.send(&wire.Packet{
		MessageType: uint32(registry.ServerEncrypted),
		FromID:      c.connID,
		ToID:        wire.ServerID,
		Payload:     env.Encode(),
	}); err != nil {
		return 0, err
	}

	select {
	case ack := <-waiter:
		if !ack.Accepted {
			return 0, fmt.Errorf("%w: %s", ErrAuthRejected, ack.Reason)
		}
		c.mu.Lock()
		if ack.AssignedID != c.connID {
			c.sessions = session.NewManager(ack.AssignedID, session.StrictMonotonic)
		}
		c.connID = ack.AssignedID
		c.mu.Unlock()
		return ack.AssignedID, nil
	case <-time.After(responseTimeout):
		return 0, ErrSessionTimeout
	}
}

// EnsureSession establishes (or reuses) an end-to-end session with
// peerID, per §4.3/§4.4. It is a no-op if a session is already
// established. If a HELLO from peerID has already raced ours and
// arrived first, session.Manager's crossed-handshake tiebreak decides
// which side's HELLO wins; either way this call waits for the handshake
// to settle into ESTABLISHED rather than assuming the reply always comes
// back to the HELLO we ourselves sent.
func (c *Client) EnsureSession(peerID uint32) error {
	if c.sessions.Status(peerID) == session.Established {
		return nil
	}

	waiter := c.pending.awaitKeyExchangeReply(peerID)

	pub, salt, err := c.sessions.BeginHandshake(peerID)
	switch {
	case err == nil:
		hello := &messages.KeyExchangeMessage{PublicKey: pub, Salt: salt, Role: messages.RoleInitiator}
		if sendErr := c.send(&wire.Packet{
			MessageType: uint32(registry.KeyExchange),
			FromID:      c.connID,
			ToID:        peerID,
			Payload:     hello.Encode(),
		}); sendErr != nil {
			return sendErr
		}
	case c.sessions.Status(peerID) == session.Established:
		return nil
	case c.sessions.Status(peerID) == session.ReceivedHello:
		// peerID's HELLO reached us first and is already being answered
		// as the responder; nothing to send, just wait for it to settle.
	default:
		return fmt.Errorf("client: begin handshake with %d: %w", peerID, err)
	}

	return c.awaitEstablished(peerID, waiter)
}

func (c *Client) awaitEstablished(peerID uint32, waiter chan *messages.KeyExchangeResponseMessage) error {
	deadline := time.After(responseTimeout)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case reply := <-waiter:
			return c.sessions.HandleHelloResponse(peerID, reply.PublicKey)
		case <-ticker.C:
			if c.sessions.Status(peerID) == session.Established {
				return nil
			}
		case <-deadline:
			return ErrSessionTimeout
		}
	}
}

// SendMessage end-to-end encrypts body under kind and sends it to
// peerID, establishing a session first if one does not already exist.
// The returned messageID is a local send-order counter for the caller's
// own bookkeeping, not an id the relay or the recipient echoes back —
// see DeliveryStatusHandler's doc comment for why.
func (c *Client) SendMessage(peerID uint32, kind registry.MessageType, msg registry.Message) (messageID uint64, err error) {
	if err := c.EnsureSession(peerID); err != nil {
		return 0, err
	}

	env, err := c.sessions.Encrypt(peerID, kind, msg.Encode())
	if err != nil {
		return 0, fmt.Errorf("client: encrypt to %d: %w", peerID, err)
	}

	c.mu.Lock()
	c.nextMessageID++
	id := c.nextMessageID
	c.mu.Unlock()

	if err := c.send(&wire.Packet{
		MessageType: uint32(registry.Encrypted),
		FromID:      c.connID,
		ToID:        peerID,
		Payload:     env.Encode(),
	}); err != nil {
		return 0, err
	}
	return id, nil
}
