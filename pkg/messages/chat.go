package messages

import "github.com/tchatsapp/core/pkg/registry"

// TextMessage is a plain chat message body. Once a session is established
// it is never sent bare — the session layer wraps it in an Encrypted
// envelope before it reaches the wire (§4.4).
type TextMessage struct {
	Body string
}

func (m *TextMessage) Encode() []byte {
	w := &writer{}
	w.str32(m.Body)
	return w.bytes()
}

func DecodeText(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	body, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &TextMessage{Body: body}, nil
}

// MediaType tags the payload carried by a MediaMessage.
type MediaType uint8

const (
	MediaImage MediaType = iota + 1
	MediaAudio
	MediaVideo
	MediaFile
)

// MediaMessage carries a small inline attachment. Larger transfers use the
// chunked FileTransferStart/FileChunk flow instead (§4.4.2).
type MediaMessage struct {
	Kind     MediaType
	Filename string
	Data     []byte
}

func (m *MediaMessage) Encode() []byte {
	w := &writer{}
	w.u8(uint8(m.Kind))
	w.str32(m.Filename)
	w.bytes32(m.Data)
	return w.bytes()
}

func DecodeMedia(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	filename, err := r.str32()
	if err != nil {
		return nil, err
	}
	data, err := r.bytes32()
	if err != nil {
		return nil, err
	}
	return &MediaMessage{Kind: MediaType(kind), Filename: filename, Data: data}, nil
}

// ReactionMessage attaches a short emoji reaction to a prior message_id.
type ReactionMessage struct {
	TargetMessageID uint64
	Emoji           string
}

func (m *ReactionMessage) Encode() []byte {
	w := &writer{}
	w.u64(m.TargetMessageID)
	w.str32(m.Emoji)
	return w.bytes()
}

func DecodeReaction(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	target, err := r.u64()
	if err != nil {
		return nil, err
	}
	emoji, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &ReactionMessage{TargetMessageID: target, Emoji: emoji}, nil
}

// NotificationKind tags a NotificationMessage's purpose.
type NotificationKind uint8

const (
	NotificationContactOnline NotificationKind = iota + 1
	NotificationContactOffline
	NotificationGroupInvite
	NotificationGeneric
)

// NotificationMessage is a server-originated informational push; it is
// hop-encrypted per registry.IsServerSensitive.
type NotificationMessage struct {
	Kind NotificationKind
	Body string
}

func (m *NotificationMessage) Encode() []byte {
	w := &writer{}
	w.u8(uint8(m.Kind))
	w.str32(m.Body)
	return w.bytes()
}

func DecodeNotification(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	kind, err := r.u8()
	if err != nil {
		return nil, err
	}
	body, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &NotificationMessage{Kind: NotificationKind(kind), Body: body}, nil
}

// AckStatus is the delivery outcome reported by a MessageAckMessage.
type AckStatus uint8

const (
	AckSent AckStatus = iota + 1
	AckFailed
)

// AckFailureReason qualifies an AckFailed status.
type AckFailureReason uint8

const (
	ReasonNone AckFailureReason = iota
	ReasonRecipientOffline
	ReasonNotAuthorized
	ReasonUnknownRecipient
)

// MessageAckMessage is the server's delivery receipt for a prior send.
// It is never itself wrapped in an Encrypted envelope (registry.noSessionRequired).
type MessageAckMessage struct {
	MessageID uint64
	Status    AckStatus
	Reason    AckFailureReason
}

func (m *MessageAckMessage) Encode() []byte {
	w := &writer{}
	w.u64(m.MessageID)
	w.u8(uint8(m.Status))
	w.u8(uint8(m.Reason))
	return w.bytes()
}

func DecodeMessageAck(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	id, err := r.u64()
	if err != nil {
		return nil, err
	}
	status, err := r.u8()
	if err != nil {
		return nil, err
	}
	reason, err := r.u8()
	if err != nil {
		return nil, err
	}
	return &MessageAckMessage{MessageID: id, Status: AckStatus(status), Reason: AckFailureReason(reason)}, nil
}

// ErrorMessage reports a server-side rejection of a prior packet.
type ErrorMessage struct {
	Code   uint32
	Detail string
}

func (m *ErrorMessage) Encode() []byte {
	w := &writer{}
	w.u32(m.Code)
	w.str32(m.Detail)
	return w.bytes()
}

func DecodeError(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	code, err := r.u32()
	if err != nil {
		return nil, err
	}
	detail, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: code, Detail: detail}, nil
}
