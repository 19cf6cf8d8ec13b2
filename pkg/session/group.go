package session

import (
	"fmt"
	"sync"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/registry"
)

// ErrUnknownGroup is returned when operating on a group_id with no known
// group key.
var ErrUnknownGroup = fmt.Errorf("session: unknown group")

// groupState is one group's symmetric key plus the bookkeeping needed to
// replay-protect messages from every member sharing that key.
type groupState struct {
	mu            sync.Mutex
	key           []byte
	outgoingSeq   uint64
	rotationCount int
	// senderReplay tracks replay state per (group, sender) pair: every
	// member encrypts under the same group key, so a single replay
	// window keyed only by sequence number would let member B's
	// sequence numbers collide with member A's.
	senderReplay map[uint32]ReplayGuard
}

// GroupManager holds every group's symmetric key this node currently
// knows, keyed by group_id (§4.4.1).
type GroupManager struct {
	mode ReplayMode

	mu     sync.RWMutex
	groups map[uint32]*groupState
}

func NewGroupManager(mode ReplayMode) *GroupManager {
	return &GroupManager{mode: mode, groups: make(map[uint32]*groupState)}
}

func (gm *GroupManager) stateFor(groupID uint32) (*groupState, bool) {
	gm.mu.RLock()
	g, ok := gm.groups[groupID]
	gm.mu.RUnlock()
	return g, ok
}

// InstallKey records groupID's current group key, as recovered from a
// GroupKeyDistribution message decrypted under the recipient's own
// pairwise session. Calling this again for a groupID already known is a
// key rotation: the per-sender replay state resets, since a rotated key
// starts a fresh sequence-number space.
func (gm *GroupManager) InstallKey(groupID uint32, key []byte) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	g, exists := gm.groups[groupID]
	if !exists {
		gm.groups[groupID] = &groupState{key: key, senderReplay: make(map[uint32]ReplayGuard)}
		return
	}

	g.mu.Lock()
	g.key = key
	g.outgoingSeq = 0
	g.rotationCount++
	g.senderReplay = make(map[uint32]ReplayGuard)
	g.mu.Unlock()
}

// RemoveKey forgets groupID's key entirely, e.g. after DeleteGroup or
// LeaveGroup (§4.4.1 edge case: a former member must not be able to
// decrypt messages sent after it left).
func (gm *GroupManager) RemoveKey(groupID uint32) {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	delete(gm.groups, groupID)
}

// EncryptForGroup seals plaintext under groupID's current key, assigning
// this member's next outgoing sequence number within the group.
func (gm *GroupManager) EncryptForGroup(groupID uint32, origType registry.MessageType, plaintext []byte) (*tcrypto.Envelope, error) {
	g, ok := gm.stateFor(groupID)
	if !ok {
		return nil, ErrUnknownGroup
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	seq := g.outgoingSeq
	g.outgoingSeq++

	return tcrypto.SealEnvelope(g.key, uint32(origType), seq, plaintext, tcrypto.GroupAAD(groupID, seq))
}

// DecryptFromGroup opens an envelope received on groupID from senderID,
// enforcing a replay window scoped to that specific sender.
func (gm *GroupManager) DecryptFromGroup(groupID, senderID uint32, env *tcrypto.Envelope) (registry.MessageType, []byte, error) {
	g, ok := gm.stateFor(groupID)
	if !ok {
		return registry.NONE, nil, ErrUnknownGroup
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	plaintext, err := env.Open(g.key, tcrypto.GroupAAD(groupID, env.Seq))
	if err != nil {
		return registry.NONE, nil, err
	}

	guard, ok := g.senderReplay[senderID]
	if !ok {
		guard = newGuard(gm.mode)
		g.senderReplay[senderID] = guard
	}
	if err := guard.Accept(env.Seq); err != nil {
		return registry.NONE, nil, err
	}

	return registry.MessageType(env.OrigType), plaintext, nil
}
