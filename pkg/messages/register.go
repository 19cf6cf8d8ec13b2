package messages

import "github.com/tchatsapp/core/pkg/registry"

// RegisterAll binds every logical message kind to reg. Called once at
// program start by both the server and the client command entry points.
func RegisterAll(reg *registry.Registry) {
	reg.Register(registry.CreateUser, DecodeCreateUser)
	reg.Register(registry.ConnectUser, DecodeConnectUser)
	reg.Register(registry.AckConnection, DecodeAckConnection)

	reg.Register(registry.Text, DecodeText)
	reg.Register(registry.Media, DecodeMedia)
	reg.Register(registry.Reaction, DecodeReaction)
	reg.Register(registry.Notification, DecodeNotification)
	reg.Register(registry.MessageAck, DecodeMessageAck)
	reg.Register(registry.Error, DecodeError)

	reg.Register(registry.ContactRequest, DecodeContactRequest)
	reg.Register(registry.ContactRequestResponse, DecodeContactRequestResponse)
	reg.Register(registry.RemoveContact, DecodeRemoveContact)
	reg.Register(registry.CreateGroup, DecodeCreateGroup)
	reg.Register(registry.AddGroupMember, DecodeAddGroupMember)
	reg.Register(registry.RemoveGroupMember, DecodeRemoveGroupMember)
	reg.Register(registry.UpdateGroupName, DecodeUpdateGroupName)
	reg.Register(registry.DeleteGroup, DecodeDeleteGroup)
	reg.Register(registry.LeaveGroup, DecodeLeaveGroup)
	reg.Register(registry.UpdatePseudo, DecodeUpdatePseudo)

	reg.Register(registry.KeyExchange, DecodeKeyExchange)
	reg.Register(registry.KeyExchangeResponse, DecodeKeyExchangeResponse)
	reg.Register(registry.FileTransferStart, DecodeFileTransferStart)
	reg.Register(registry.FileChunk, DecodeFileChunk)
	reg.Register(registry.GroupKeyDistribution, DecodeGroupKeyDistribution)

	reg.Register(registry.ServerKeyExchange, DecodeServerKeyExchange)
	reg.Register(registry.ServerKeyExchangeResponse, DecodeServerKeyExchangeResponse)

	// registry.Encrypted and registry.ServerEncrypted are decoded by
	// pkg/crypto's envelope codec, not here: their payload is opaque
	// ciphertext until a session key unwraps it.
}
