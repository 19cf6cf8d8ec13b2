// Package registry owns the closed enumeration of logical message kinds
// and the (de)serialization table that maps each kind to a packet
// payload (C2). New kinds are added by an explicit Register call at
// program start, never by reflection.
package registry

// MessageType is the stable wire ordinal carried in a Packet's
// MessageType field.
type MessageType uint32

// NONE is ordinal 0. No codec is registered for it; the relay sends it
// as the type of its zero-length keep-alive packets.
const NONE MessageType = 0

const (
	CreateUser  MessageType = iota + 1 // account bootstrap (external collaborator op, framed here)
	ConnectUser                        // client -> server connection request
	AckConnection

	Text
	Media
	Reaction
	Notification
	MessageAck
	Error

	ContactRequest
	ContactRequestResponse
	RemoveContact
	CreateGroup
	AddGroupMember
	RemoveGroupMember
	UpdateGroupName
	DeleteGroup
	LeaveGroup
	UpdatePseudo

	KeyExchange
	KeyExchangeResponse
	Encrypted
	FileTransferStart
	FileChunk
	GroupKeyDistribution

	ServerKeyExchange
	ServerKeyExchangeResponse
	ServerEncrypted
)

// serverSensitive is the set of server-originated message types that must
// be wrapped in a SERVER_ENCRYPTED hop envelope once the hop key is
// installed (§4.5).
var serverSensitive = map[MessageType]bool{
	AckConnection:           true,
	Error:                   true,
	Notification:            true,
	MessageAck:              true,
	ContactRequestResponse:  true,
	AddGroupMember:          true,
	RemoveGroupMember:       true,
	UpdateGroupName:         true,
	DeleteGroup:             true,
	LeaveGroup:              true,
}

// IsServerSensitive reports whether a server-originated packet of this
// type must be hop-encrypted before it is written to the client socket.
func IsServerSensitive(t MessageType) bool {
	return serverSensitive[t]
}

// noSessionRequired is the set of message types the session manager's
// outgoing pipeline (§4.4) must never itself wrap in an ENCRYPTED
// envelope — they are either already an envelope, or part of the
// handshake that establishes the keys an envelope would need.
var noSessionRequired = map[MessageType]bool{
	KeyExchange:         true,
	KeyExchangeResponse: true,
	Encrypted:           true,
	MessageAck:          true,
}

// RequiresEncryptedWrap reports whether an outgoing message of this kind
// must be wrapped in an end-to-end ENCRYPTED envelope before being sent.
func RequiresEncryptedWrap(t MessageType, toID uint32) bool {
	if toID == 0 {
		return false
	}
	return !noSessionRequired[t]
}
