package messages

import "github.com/tchatsapp/core/pkg/registry"

// ContactRequestMessage proposes a contact relationship to the recipient.
type ContactRequestMessage struct {
	Pseudo string
}

func (m *ContactRequestMessage) Encode() []byte {
	w := &writer{}
	w.str32(m.Pseudo)
	return w.bytes()
}

func DecodeContactRequest(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	pseudo, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &ContactRequestMessage{Pseudo: pseudo}, nil
}

// ContactRequestResponseMessage answers a pending ContactRequest.
type ContactRequestResponseMessage struct {
	Accepted bool
}

func (m *ContactRequestResponseMessage) Encode() []byte {
	w := &writer{}
	if m.Accepted {
		w.u8(1)
	} else {
		w.u8(0)
	}
	return w.bytes()
}

func DecodeContactRequestResponse(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	v, err := r.u8()
	if err != nil {
		return nil, err
	}
	return &ContactRequestResponseMessage{Accepted: v != 0}, nil
}

// RemoveContactMessage severs a contact relationship.
type RemoveContactMessage struct {
	ContactID uint32
}

func (m *RemoveContactMessage) Encode() []byte {
	w := &writer{}
	w.u32(m.ContactID)
	return w.bytes()
}

func DecodeRemoveContact(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	return &RemoveContactMessage{ContactID: id}, nil
}

// CreateGroupMessage requests creation of a new group with the sender as
// its first member.
type CreateGroupMessage struct {
	Name string
}

func (m *CreateGroupMessage) Encode() []byte {
	w := &writer{}
	w.str32(m.Name)
	return w.bytes()
}

func DecodeCreateGroup(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	name, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &CreateGroupMessage{Name: name}, nil
}

// groupMember is the shared [group_id, member_id] shape used by
// AddGroupMember and RemoveGroupMember.
type groupMember struct {
	GroupID  uint32
	MemberID uint32
}

func (m *groupMember) encode() []byte {
	w := &writer{}
	w.u32(m.GroupID)
	w.u32(m.MemberID)
	return w.bytes()
}

func decodeGroupMember(payload []byte) (groupMember, error) {
	r := &reader{buf: payload}
	gid, err := r.u32()
	if err != nil {
		return groupMember{}, err
	}
	mid, err := r.u32()
	if err != nil {
		return groupMember{}, err
	}
	return groupMember{GroupID: gid, MemberID: mid}, nil
}

// AddGroupMemberMessage adds a member to a group. Server-originated copies
// fanned out to existing members are hop-encrypted (registry.IsServerSensitive).
type AddGroupMemberMessage struct {
	GroupID  uint32
	MemberID uint32
}

func (m *AddGroupMemberMessage) Encode() []byte {
	return (&groupMember{GroupID: m.GroupID, MemberID: m.MemberID}).encode()
}

func DecodeAddGroupMember(payload []byte) (registry.Message, error) {
	gm, err := decodeGroupMember(payload)
	if err != nil {
		return nil, err
	}
	return &AddGroupMemberMessage{GroupID: gm.GroupID, MemberID: gm.MemberID}, nil
}

// RemoveGroupMemberMessage removes a member from a group.
type RemoveGroupMemberMessage struct {
	GroupID  uint32
	MemberID uint32
}

func (m *RemoveGroupMemberMessage) Encode() []byte {
	return (&groupMember{GroupID: m.GroupID, MemberID: m.MemberID}).encode()
}

func DecodeRemoveGroupMember(payload []byte) (registry.Message, error) {
	gm, err := decodeGroupMember(payload)
	if err != nil {
		return nil, err
	}
	return &RemoveGroupMemberMessage{GroupID: gm.GroupID, MemberID: gm.MemberID}, nil
}

// UpdateGroupNameMessage renames a group.
type UpdateGroupNameMessage struct {
	GroupID uint32
	Name    string
}

func (m *UpdateGroupNameMessage) Encode() []byte {
	w := &writer{}
	w.u32(m.GroupID)
	w.str32(m.Name)
	return w.bytes()
}

func DecodeUpdateGroupName(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	gid, err := r.u32()
	if err != nil {
		return nil, err
	}
	name, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &UpdateGroupNameMessage{GroupID: gid, Name: name}, nil
}

// groupOnly is the shared [group_id] shape used by DeleteGroup and LeaveGroup.
type groupOnly struct {
	GroupID uint32
}

func (m *groupOnly) encode() []byte {
	w := &writer{}
	w.u32(m.GroupID)
	return w.bytes()
}

func decodeGroupOnly(payload []byte) (groupOnly, error) {
	r := &reader{buf: payload}
	gid, err := r.u32()
	if err != nil {
		return groupOnly{}, err
	}
	return groupOnly{GroupID: gid}, nil
}

// DeleteGroupMessage dissolves a group entirely. Only the last-writer
// authorization check for this lives outside this package (§1 Non-goals).
type DeleteGroupMessage struct {
	GroupID uint32
}

func (m *DeleteGroupMessage) Encode() []byte {
	return (&groupOnly{GroupID: m.GroupID}).encode()
}

func DecodeDeleteGroup(payload []byte) (registry.Message, error) {
	g, err := decodeGroupOnly(payload)
	if err != nil {
		return nil, err
	}
	return &DeleteGroupMessage{GroupID: g.GroupID}, nil
}

// LeaveGroupMessage removes the sender from a group.
type LeaveGroupMessage struct {
	GroupID uint32
}

func (m *LeaveGroupMessage) Encode() []byte {
	return (&groupOnly{GroupID: m.GroupID}).encode()
}

func DecodeLeaveGroup(payload []byte) (registry.Message, error) {
	g, err := decodeGroupOnly(payload)
	if err != nil {
		return nil, err
	}
	return &LeaveGroupMessage{GroupID: g.GroupID}, nil
}

// UpdatePseudoMessage changes the sender's display name.
type UpdatePseudoMessage struct {
	Pseudo string
}

func (m *UpdatePseudoMessage) Encode() []byte {
	w := &writer{}
	w.str32(m.Pseudo)
	return w.bytes()
}

func DecodeUpdatePseudo(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	pseudo, err := r.str32()
	if err != nil {
		return nil, err
	}
	return &UpdatePseudoMessage{Pseudo: pseudo}, nil
}
