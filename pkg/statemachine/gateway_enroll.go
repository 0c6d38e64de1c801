package statemachine

import (
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/spake2plus"
)

// GatewayEnroll is the gateway-side coordinator for enrollment: derive the
// augmented verifier from the user's password, broadcast it to every
// replica as a PutMessage, and once f+1 replicas confirm durable storage,
// tell the user enrollment succeeded.
type GatewayEnroll struct {
	caps GatewayCapabilities
	key  protocol.TxKey

	req        *messages.EnrollRequest
	userID     protocol.NodeID
	putMsg     *messages.PutMessage
	completers map[protocol.NodeID]bool
	done       bool
}

// NewGatewayEnrollFactory is a node.Factory for protocol.KindEnroll.
func NewGatewayEnrollFactory(caps GatewayCapabilities) node.Factory {
	return func(key protocol.TxKey) node.Transaction {
		return &GatewayEnroll{caps: caps, key: key, completers: make(map[protocol.NodeID]bool)}
	}
}

// Handle processes one inbound message for this transaction.
func (sm *GatewayEnroll) Handle(msg interface{}, from protocol.NodeID) error {
	switch v := msg.(type) {
	case *messages.EnrollRequest:
		return sm.handleRequest(v, from)
	case *messages.PutCompleteMessage:
		return sm.handleComplete(v, from)
	default:
		return fmt.Errorf("gateway enroll: unexpected message type %T", msg)
	}
}

// Done reports whether an EnrollResponse has been sent to the user.
func (sm *GatewayEnroll) Done() bool { return sm.done }

func (sm *GatewayEnroll) handleRequest(v *messages.EnrollRequest, from protocol.NodeID) error {
	if sm.req != nil {
		return nil
	}
	sm.req = v
	sm.userID = from

	verifier, err := spake2plus.PasswordToSecretB([]byte(v.Password), []byte(v.Username), sm.caps.Identity)
	if err != nil {
		return fmt.Errorf("gateway enroll: deriving verifier: %w", err)
	}

	putMsg := &messages.PutMessage{
		Key:       v.Username,
		Secret:    verifier.Bytes(),
		ClientID:  uint32(sm.caps.Self),
		Timestamp: v.Timestamp,
	}
	payload, err := putMsg.Payload()
	if err != nil {
		return fmt.Errorf("gateway enroll: computing payload: %w", err)
	}
	putMsg.AttachSignature(sm.caps.Signer.Sign(payload))
	sm.putMsg = putMsg

	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleGateway, sm.key, "request_received", "put_broadcast", "")
	// Sent to the replicas only: a user connected to the gateway receives
	// nothing but its own reply.
	for _, id := range sm.caps.ReplicaIDs {
		_ = sm.caps.Network.SendTo(uint32(id), putMsg)
	}
	return nil
}

func (sm *GatewayEnroll) handleComplete(v *messages.PutCompleteMessage, from protocol.NodeID) error {
	payload, err := v.Payload()
	if err != nil {
		return fmt.Errorf("gateway enroll: computing complete payload: %w", err)
	}
	if err := sm.caps.Verifier.Verify(uint32(v.SenderID), payload, v.Sig); err != nil {
		return fmt.Errorf("gateway enroll: rejecting unverified PutComplete: %w", err)
	}

	sm.completers[protocol.NodeID(v.SenderID)] = true
	if len(sm.completers) < sm.caps.LivenessQuorum() {
		return nil
	}
	if sm.done || sm.req == nil {
		return nil
	}

	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleGateway, sm.key, "put_broadcast", "quorum_reached", "")
	resp := &messages.EnrollResponse{Username: sm.req.Username, Timestamp: sm.req.Timestamp}
	if err := sm.caps.Network.SendTo(uint32(sm.userID), resp); err != nil {
		return fmt.Errorf("gateway enroll: replying to user: %w", err)
	}

	sm.done = true
	return nil
}
