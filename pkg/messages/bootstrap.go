package messages

import "github.com/tchatsapp/core/pkg/registry"

// CreateUserMessage registers a new account. Credential storage and
// validation are an external collaborator's job (§1 Non-goals); this type
// only frames the bytes on the wire.
type CreateUserMessage struct {
	Pseudo       string
	PasswordHash []byte
}

func (m *CreateUserMessage) Encode() []byte {
	w := &writer{}
	w.str32(m.Pseudo)
	w.bytes32(m.PasswordHash)
	return w.bytes()
}

func DecodeCreateUser(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	pseudo, err := r.str32()
	if err != nil {
		return nil, err
	}
	hash, err := r.bytes32()
	if err != nil {
		return nil, err
	}
	return &CreateUserMessage{Pseudo: pseudo, PasswordHash: hash}, nil
}

// ConnectUserMessage opens a session against an existing account.
type ConnectUserMessage struct {
	UserID    uint32
	AuthToken []byte
}

func (m *ConnectUserMessage) Encode() []byte {
	w := &writer{}
	w.u32(m.UserID)
	w.bytes32(m.AuthToken)
	return w.bytes()
}

func DecodeConnectUser(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	token, err := r.bytes32()
	if err != nil {
		return nil, err
	}
	return &ConnectUserMessage{UserID: id, AuthToken: token}, nil
}

// AckConnectionMessage is the server's answer to ConnectUser. It is
// hop-encrypted once the SERVER_KEY_EXCHANGE for the connection completes,
// since it may carry the rejection reason.
type AckConnectionMessage struct {
	Accepted bool
	AssignedID uint32
	Reason   string
}

func (m *AckConnectionMessage) Encode() []byte {
	w := &writer{}
	if m.Accepted {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u32(m.AssignedID)
	w.str32(m.Reason)
	return w.bytes()
}

func DecodeAckConnection(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	accepted, err := r.u8()
	if err != nil {
		return nil, err
	}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	reason, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &AckConnectionMessage{Accepted: accepted != 0, AssignedID: id, Reason: reason}, nil
}
