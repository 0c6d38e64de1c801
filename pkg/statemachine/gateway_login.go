package statemachine

import (
	"bytes"
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/spake2plus"
)

// GatewayLogin is the gateway-side coordinator for login: broadcast a
// GetMessage to every replica, wait for f+1 replicas to reply with the
// *same* recovered verifier blob, then run the server half of SPAKE2+
// against it and answer the user. Taking the first response as soon as
// f+1 arrive, without checking that they agree, would let a minority of
// forged or stale replies win the race; majorityBlob instead requires
// f+1 responses to actually agree byte-for-byte before any of them is
// used.
type GatewayLogin struct {
	caps GatewayCapabilities
	key  protocol.TxKey

	req       *messages.LoginRequest
	userID    protocol.NodeID
	getMsg    *messages.GetMessage
	responses map[protocol.NodeID][]byte
	done      bool
}

// NewGatewayLoginFactory is a node.Factory for protocol.KindLogin.
func NewGatewayLoginFactory(caps GatewayCapabilities) node.Factory {
	return func(key protocol.TxKey) node.Transaction {
		return &GatewayLogin{caps: caps, key: key, responses: make(map[protocol.NodeID][]byte)}
	}
}

// Handle processes one inbound message for this transaction.
func (sm *GatewayLogin) Handle(msg interface{}, from protocol.NodeID) error {
	switch v := msg.(type) {
	case *messages.LoginRequest:
		return sm.handleRequest(v, from)
	case *messages.GetResponseMessage:
		return sm.handleResponse(v, from)
	default:
		return fmt.Errorf("gateway login: unexpected message type %T", msg)
	}
}

// Done reports whether the transaction is finished: a LoginResponse has
// been sent to the user, or every replica has answered without f+1 of
// them agreeing on a verifier blob, in which case no LoginResponse is sent.
func (sm *GatewayLogin) Done() bool { return sm.done }

func (sm *GatewayLogin) handleRequest(v *messages.LoginRequest, from protocol.NodeID) error {
	if sm.req != nil {
		return nil
	}
	sm.req = v
	sm.userID = from

	getMsg := &messages.GetMessage{Key: v.Username, ClientID: uint32(sm.caps.Self), Timestamp: v.Timestamp}
	payload, err := getMsg.Payload()
	if err != nil {
		return fmt.Errorf("gateway login: computing payload: %w", err)
	}
	getMsg.AttachSignature(sm.caps.Signer.Sign(payload))
	sm.getMsg = getMsg

	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleGateway, sm.key, "request_received", "get_broadcast", "")
	// Sent to the replicas only: a user connected to the gateway receives
	// nothing but its own reply.
	for _, id := range sm.caps.ReplicaIDs {
		_ = sm.caps.Network.SendTo(uint32(id), getMsg)
	}
	return nil
}

func (sm *GatewayLogin) handleResponse(v *messages.GetResponseMessage, from protocol.NodeID) error {
	payload, err := v.Payload()
	if err != nil {
		return fmt.Errorf("gateway login: computing response payload: %w", err)
	}
	if err := sm.caps.Verifier.Verify(uint32(v.SenderID), payload, v.Sig); err != nil {
		return fmt.Errorf("gateway login: rejecting unverified GetResponse: %w", err)
	}

	sm.responses[protocol.NodeID(v.SenderID)] = v.Secret

	if sm.done || sm.req == nil {
		return nil
	}

	matching, ok := sm.majorityBlob()
	if !ok {
		if len(sm.responses) >= len(sm.caps.ReplicaIDs) {
			logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleGateway, sm.key, "get_broadcast", "failed", "no f+1 matching verifier blobs")
			sm.done = true
		}
		return nil
	}

	verifier, err := spake2plus.ParseVerifier(matching)
	if err != nil {
		return fmt.Errorf("gateway login: parsing recovered verifier: %w", err)
	}
	server, err := spake2plus.NewServerRole(verifier, []byte(sm.req.Username), sm.caps.Identity)
	if err != nil {
		return fmt.Errorf("gateway login: starting SPAKE2+ server role: %w", err)
	}
	serverElement := server.Start()
	if _, err := server.Finish(sm.req.U); err != nil {
		return fmt.Errorf("gateway login: finishing SPAKE2+: %w", err)
	}
	confirmation := server.Confirmation()

	logTransition(sm.caps.Logger, sm.caps.Self, protolog.RoleGateway, sm.key, "get_broadcast", "quorum_reached", "")
	resp := &messages.LoginResponse{
		Username:     sm.req.Username,
		V:            serverElement,
		Confirmation: confirmation,
		Timestamp:    sm.req.Timestamp,
	}
	if err := sm.caps.Network.SendTo(uint32(sm.userID), resp); err != nil {
		return fmt.Errorf("gateway login: replying to user: %w", err)
	}

	sm.done = true
	return nil
}

// majorityBlob returns the first verifier blob with at least f+1
// responses agreeing on it byte-for-byte, or false if no blob has
// reached that quorum yet.
func (sm *GatewayLogin) majorityBlob() ([]byte, bool) {
	counts := make([]struct {
		blob  []byte
		count int
	}, 0, len(sm.responses))

	for _, blob := range sm.responses {
		found := false
		for i := range counts {
			if bytes.Equal(counts[i].blob, blob) {
				counts[i].count++
				found = true
				break
			}
		}
		if !found {
			counts = append(counts, struct {
				blob  []byte
				count int
			}{blob: blob, count: 1})
		}
	}

	for _, c := range counts {
		if c.count >= sm.caps.LivenessQuorum() {
			return c.blob, true
		}
	}
	return nil, false
}
