package statemachine

import (
	"bytes"
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

// ReplicaPut is the replica-side half of a replicated write: accept the
// gateway's proposed verifier blob, broadcast acceptance to every other
// replica, and once 2f+1 replicas (including this one) have accepted,
// threshold-encrypt and durably store it, then tell the gateway it's
// done.
type ReplicaPut struct {
	caps ReplicaCapabilities
	key  protocol.TxKey

	putMsg    *messages.PutMessage
	acceptors map[protocol.NodeID]bool
	done      bool
}

// NewReplicaPutFactory is a node.Factory for protocol.KindPut.
func NewReplicaPutFactory(caps ReplicaCapabilities) node.Factory {
	return func(key protocol.TxKey) node.Transaction {
		return &ReplicaPut{caps: caps, key: key, acceptors: make(map[protocol.NodeID]bool)}
	}
}

// Handle processes one inbound message for this transaction.
func (sm *ReplicaPut) Handle(msg interface{}, from protocol.NodeID) error {
	switch v := msg.(type) {
	case *messages.PutMessage:
		return sm.handlePut(v, from)
	case *messages.PutAcceptMessage:
		return sm.handleAccept(v, from)
	default:
		return fmt.Errorf("replica put: unexpected message type %T", msg)
	}
}

// Done reports whether the verifier has been durably stored.
func (sm *ReplicaPut) Done() bool { return sm.done }

func (sm *ReplicaPut) handlePut(v *messages.PutMessage, from protocol.NodeID) error {
	if sm.putMsg != nil {
		// Already accepted a PutMessage for this key; a second proposal
		// for the same (username, timestamp) is not re-validated.
		return nil
	}

	payload, err := v.Payload()
	if err != nil {
		return fmt.Errorf("replica put: computing payload: %w", err)
	}
	if err := sm.caps.Verifier.Verify(uint32(v.ClientID), payload, v.Sig); err != nil {
		return fmt.Errorf("replica put: rejecting unverified PutMessage: %w", err)
	}

	cp := *v
	sm.putMsg = &cp
	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "put_received", "accepting", "")

	return sm.broadcastOwnAccept()
}

// handleAccept processes a PutAcceptMessage, whether it is this replica's
// own echoed accept or one broadcast by a peer. The very first message
// this transaction ever sees may be a peer's accept — the gateway's Put
// and a peer's resulting broadcast can race over independent
// connections, so a replica can learn of a write before its own copy of
// the Put arrives. In that case this replica must still contribute its
// own accept: it adopts the embedded PutMessage and runs exactly the
// same broadcast-and-self-accept path handlePut would have run, so that
// one of the 2f+1 accepts counted toward quorum is always this replica's
// own, never only a tally of everyone else's.
func (sm *ReplicaPut) handleAccept(v *messages.PutAcceptMessage, from protocol.NodeID) error {
	if from != sm.caps.Self {
		payload, err := v.Payload()
		if err != nil {
			return fmt.Errorf("replica put: computing accept payload: %w", err)
		}
		if err := sm.caps.Verifier.Verify(uint32(v.SenderID), payload, v.Sig); err != nil {
			return fmt.Errorf("replica put: rejecting unverified PutAccept: %w", err)
		}
	}

	if sm.putMsg == nil {
		cp := v.PutMsg
		sm.putMsg = &cp
		logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "accept_received_before_put", "accepting", "")
		if err := sm.broadcastOwnAccept(); err != nil {
			return err
		}
	}

	// The first PutMessage adopted is canonical: an accept embedding a
	// different proposal for the same key is not counted toward quorum.
	if v.PutMsg.ClientID != sm.putMsg.ClientID || !bytes.Equal(v.PutMsg.Secret, sm.putMsg.Secret) {
		return nil
	}

	return sm.recordAccept(v)
}

// broadcastOwnAccept builds, signs, and broadcasts this replica's own
// PutAcceptMessage for sm.putMsg, then records it as this replica's own
// vote toward quorum.
func (sm *ReplicaPut) broadcastOwnAccept() error {
	accept := &messages.PutAcceptMessage{PutMsg: *sm.putMsg, SenderID: uint32(sm.caps.Self)}
	if err := sm.sign(accept); err != nil {
		return err
	}
	sm.caps.Network.Broadcast(accept)
	return sm.recordAccept(accept)
}

// recordAccept tallies v's sender and, once 2f+1 replicas (including
// this one) have accepted, encrypts and durably stores the verifier and
// notifies the gateway.
func (sm *ReplicaPut) recordAccept(v *messages.PutAcceptMessage) error {
	sm.acceptors[protocol.NodeID(v.SenderID)] = true
	if len(sm.acceptors) < sm.caps.QuorumSize() {
		return nil
	}
	if sm.done {
		return nil
	}

	ct, err := thresholdenc.Encrypt(sm.caps.PublicKey, sm.putMsg.Secret)
	if err != nil {
		return fmt.Errorf("replica put: encrypting verifier: %w", err)
	}
	blob, err := marshalCiphertext(ct)
	if err != nil {
		return fmt.Errorf("replica put: encoding ciphertext: %w", err)
	}
	if err := sm.caps.Store.Put(sm.putMsg.Key, blob); err != nil {
		return fmt.Errorf("replica put: storing ciphertext: %w", err)
	}
	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleReplica, sm.key, "accepting", "stored", "")

	complete := &messages.PutCompleteMessage{PutMsg: *sm.putMsg, SenderID: uint32(sm.caps.Self)}
	if err := sm.sign(complete); err != nil {
		return err
	}
	if err := sm.caps.Network.SendTo(uint32(sm.putMsg.ClientID), complete); err != nil {
		return fmt.Errorf("replica put: notifying gateway: %w", err)
	}

	sm.done = true
	return nil
}

func (sm *ReplicaPut) sign(m messages.Signable) error {
	payload, err := m.Payload()
	if err != nil {
		return fmt.Errorf("replica put: computing payload to sign: %w", err)
	}
	m.AttachSignature(sm.caps.Signer.Sign(payload))
	return nil
}
