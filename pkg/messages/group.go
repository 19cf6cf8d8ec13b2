package messages

import "github.com/tchatsapp/core/pkg/registry"

// GroupKeyDistributionMessage delivers (or rotates) the symmetric group
// key to one member, end-to-end encrypted under that member's pairwise
// session key (§4.4.1). It is never sent in the clear.
type GroupKeyDistributionMessage struct {
	GroupID  uint32
	GroupKey []byte
}

func (m *GroupKeyDistributionMessage) Encode() []byte {
	w := &writer{}
	w.u32(m.GroupID)
	w.bytes16(m.GroupKey)
	return w.bytes()
}

func DecodeGroupKeyDistribution(payload []byte) (registry.Message, error) {
	r := &reader{buf: payload}
	gid, err := r.u32()
	if err != nil {
		return nil, err
	}
	key, err := r.bytes16()
	if err != nil {
		return nil, err
	}
	return &GroupKeyDistributionMessage{GroupID: gid, GroupKey: key}, nil
}
