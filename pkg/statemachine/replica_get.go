package statemachine

import (
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

// ReplicaGet is the replica-side half of a threshold read: on a gateway's
// GetMessage, broadcast this replica's own decryption share, collect 2f+1
// shares (including its own) from the others, combine them to recover the
// plaintext verifier blob, and reply to the gateway.
type ReplicaGet struct {
	caps ReplicaCapabilities
	key  protocol.TxKey

	getMsg *messages.GetMessage
	ct     thresholdenc.Ciphertext
	shares map[protocol.NodeID]thresholdenc.DecryptionShare
	done   bool
}

// NewReplicaGetFactory is a node.Factory for protocol.KindGet.
func NewReplicaGetFactory(caps ReplicaCapabilities) node.Factory {
	return func(key protocol.TxKey) node.Transaction {
		return &ReplicaGet{caps: caps, key: key, shares: make(map[protocol.NodeID]thresholdenc.DecryptionShare)}
	}
}

// Handle processes one inbound message for this transaction.
func (sm *ReplicaGet) Handle(msg interface{}, from protocol.NodeID) error {
	switch v := msg.(type) {
	case *messages.GetMessage:
		return sm.handleGet(v, from)
	case *messages.DecryptionShareMessage:
		return sm.handleShare(v, from)
	default:
		return fmt.Errorf("replica get: unexpected message type %T", msg)
	}
}

// Done reports whether a GetResponseMessage has been sent to the gateway.
func (sm *ReplicaGet) Done() bool { return sm.done }

func (sm *ReplicaGet) handleGet(v *messages.GetMessage, from protocol.NodeID) error {
	if sm.getMsg != nil {
		return nil
	}

	payload, err := v.Payload()
	if err != nil {
		return fmt.Errorf("replica get: computing payload: %w", err)
	}
	if err := sm.caps.Verifier.Verify(uint32(v.ClientID), payload, v.Sig); err != nil {
		return fmt.Errorf("replica get: rejecting unverified GetMessage: %w", err)
	}

	cp := *v
	sm.getMsg = &cp
	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "get_received", "sharing", "")

	if err := sm.ensureCiphertext(); err != nil {
		return err
	}
	return sm.broadcastOwnShare()
}

// handleShare processes a DecryptionShareMessage, whether it is this
// replica's own echoed share or one broadcast by a peer. The very first
// message this transaction ever sees may be a peer's share — the
// gateway's Get and a peer's resulting broadcast can race over
// independent connections, so a replica can learn of a read before its
// own copy of the Get arrives. In that case this replica must still
// contribute its own share: it adopts the embedded GetMessage and runs
// the same compute-and-broadcast path handleGet would have run, so one
// of the 2f+1 shares combined is always this replica's own, never only a
// tally of everyone else's.
func (sm *ReplicaGet) handleShare(v *messages.DecryptionShareMessage, from protocol.NodeID) error {
	if from != sm.caps.Self {
		payload, err := v.Payload()
		if err != nil {
			return fmt.Errorf("replica get: computing share payload: %w", err)
		}
		if err := sm.caps.Verifier.Verify(uint32(v.SenderID), payload, v.Sig); err != nil {
			return fmt.Errorf("replica get: rejecting unverified decryption share: %w", err)
		}
	}

	if sm.getMsg == nil {
		cp := v.GetMsg
		sm.getMsg = &cp
		logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "share_received_before_get", "sharing", "")

		// If this replica hasn't stored the verifier yet, it can't produce
		// its own share right now; recordShare's lazy retry below gives it
		// another chance once quorum is otherwise reached. Either way the
		// peer share that triggered this call must still be recorded.
		if err := sm.ensureCiphertext(); err == nil {
			if err := sm.broadcastOwnShare(); err != nil {
				return err
			}
		}
	}

	return sm.recordShare(v)
}

// ensureCiphertext loads the stored ciphertext for this transaction's key
// if it hasn't been loaded yet.
func (sm *ReplicaGet) ensureCiphertext() error {
	if sm.ct.EphemeralX != nil {
		return nil
	}
	blob, err := sm.caps.Store.Get(sm.getMsg.Key)
	if err != nil {
		return fmt.Errorf("replica get: %s not found: %w", sm.getMsg.Key, err)
	}
	ct, err := unmarshalCiphertext(blob)
	if err != nil {
		return err
	}
	sm.ct = ct
	return nil
}

// broadcastOwnShare computes, signs, and broadcasts this replica's own
// decryption share for sm.getMsg, then records it as this replica's own
// vote toward quorum.
func (sm *ReplicaGet) broadcastOwnShare() error {
	share := thresholdenc.Decrypt(sm.caps.Share, sm.ct)
	shareBytes, err := marshalDecryptionShare(share)
	if err != nil {
		return err
	}

	dshare := &messages.DecryptionShareMessage{DecryptionShare: shareBytes, SenderID: uint32(sm.caps.Self), GetMsg: *sm.getMsg}
	if err := sm.sign(dshare); err != nil {
		return err
	}
	sm.caps.Network.Broadcast(dshare)
	return sm.recordShare(dshare)
}

// recordShare tallies v's sender and, once 2f+1 shares (including this
// one) have been collected, combines them and replies to the gateway.
func (sm *ReplicaGet) recordShare(v *messages.DecryptionShareMessage) error {
	share, err := unmarshalDecryptionShare(v.DecryptionShare)
	if err != nil {
		return err
	}
	sm.shares[protocol.NodeID(v.SenderID)] = share

	if len(sm.shares) < sm.caps.QuorumSize() {
		return nil
	}
	if sm.done {
		return nil
	}

	// A quorum can form entirely from peer shares before this replica
	// managed to load its own ciphertext (e.g. its broadcastOwnShare call
	// above never ran because ensureCiphertext failed); retry here, and
	// contribute this replica's own share before combining.
	if err := sm.ensureCiphertext(); err != nil {
		return err
	}
	if _, ok := sm.shares[sm.caps.Self]; !ok {
		return sm.broadcastOwnShare()
	}

	all := make([]thresholdenc.DecryptionShare, 0, len(sm.shares))
	for _, s := range sm.shares {
		all = append(all, s)
	}
	plaintext, err := thresholdenc.Combine(sm.ct, all)
	if err != nil {
		return fmt.Errorf("replica get: combining shares: %w", err)
	}
	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "sharing", "responded", "")

	resp := &messages.GetResponseMessage{GetMsg: *sm.getMsg, Secret: plaintext, SenderID: uint32(sm.caps.Self)}
	if err := sm.sign(resp); err != nil {
		return err
	}
	if err := sm.caps.Network.SendTo(uint32(sm.getMsg.ClientID), resp); err != nil {
		return fmt.Errorf("replica get: notifying gateway: %w", err)
	}

	sm.done = true
	return nil
}

func (sm *ReplicaGet) sign(m messages.Signable) error {
	payload, err := m.Payload()
	if err != nil {
		return fmt.Errorf("replica get: computing payload to sign: %w", err)
	}
	m.AttachSignature(sm.caps.Signer.Sign(payload))
	return nil
}
