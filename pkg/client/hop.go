package client

import (
	"fmt"
	"net"
	"time"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"
	"github.com/tchatsapp/core/pkg/session"
	"github.com/tchatsapp/core/pkg/wire"
)

// hopClientSession is the client-side mirror of pkg/server's hopSession:
// the same ECDH-then-HKDF derivation, from the initiator's perspective.
type hopClientSession struct {
	key         []byte
	outgoingSeq uint64
	replay      session.ReplayGuard
}

func (hs *hopClientSession) seal(origType registry.MessageType, plaintext []byte) (*tcrypto.Envelope, error) {
	seq := hs.outgoingSeq
	hs.outgoingSeq++
	return tcrypto.SealEnvelope(hs.key, uint32(origType), seq, plaintext, tcrypto.HopAAD(uint32(origType), seq))
}

func (hs *hopClientSession) open(env *tcrypto.Envelope) (registry.MessageType, []byte, error) {
	plaintext, err := env.Open(hs.key, tcrypto.HopAAD(env.OrigType, env.Seq))
	if err != nil {
		return 0, nil, err
	}
	if err := hs.replay.Accept(env.Seq); err != nil {
		return 0, nil, err
	}
	return registry.MessageType(env.OrigType), plaintext, nil
}

// performHopHandshake sends SERVER_KEY_EXCHANGE and waits for the
// server's response, deriving the hop session key as the initiator.
// The relay assigns the connection id when it accepts the TCP connection
// and stamps it into the response's ToID; the client derives the key
// from the ECDH secret with the same zero salt and "hop:<connID>" HKDF
// info string the server uses.
func performHopHandshake(conn net.Conn, reg *registry.Registry) (*hopClientSession, error) {
	identity, err := tcrypto.GenerateIdentity()
	if err != nil {
		return nil, fmt.Errorf("client: hop identity: %w", err)
	}

	hello := &messages.ServerKeyExchangeMessage{PublicKey: identity.Public}
	pkt := &wire.Packet{
		MessageType: uint32(registry.ServerKeyExchange),
		FromID:      wire.ServerID,
		ToID:        wire.ServerID,
		Payload:     hello.Encode(),
	}
	if err := wire.Write(conn, pkt); err != nil {
		return nil, fmt.Errorf("client: send hello: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(responseTimeout))
	reply, err := wire.Read(conn)
	if err != nil {
		return nil, fmt.Errorf("client: read hello response: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if registry.MessageType(reply.MessageType) != registry.ServerKeyExchangeResponse {
		return nil, fmt.Errorf("client: expected SERVER_KEY_EXCHANGE_RESPONSE, got type %d", reply.MessageType)
	}

	msg, err := reg.Decode(registry.ServerKeyExchangeResponse, reply.Payload)
	if err != nil {
		return nil, fmt.Errorf("client: decode hello response: %w", err)
	}
	resp, ok := msg.(*messages.ServerKeyExchangeResponseMessage)
	if !ok {
		return nil, fmt.Errorf("client: unexpected hello response body type %T", msg)
	}

	shared, err := tcrypto.DeriveShared(identity.Private, resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("client: hop ecdh: %w", err)
	}

	var zeroSalt [16]byte
	key, err := tcrypto.DeriveSessionKey(shared, zeroSalt, connIDPlaceholder(reply.ToID))
	if err != nil {
		return nil, fmt.Errorf("client: hop kdf: %w", err)
	}

	return &hopClientSession{key: key, replay: session.NewStrictMonotonicGuard()}, nil
}

// connIDPlaceholder mirrors the server's "hop:<connID>" info string. The
// server stamps the newly assigned connection id into the response
// packet's ToID field specifically so the client can bind the same info
// string without a separate bootstrap round trip.
func connIDPlaceholder(connID uint32) string {
	return fmt.Sprintf("hop:%d", connID)
}
