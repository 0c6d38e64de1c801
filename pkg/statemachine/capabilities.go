// Package statemachine implements the four per-transaction state
// machines the protocol runs: ReplicaPut and ReplicaGet run on every
// replica; GatewayEnroll and GatewayLogin run on the gateway as the
// coordinator of a replicated write or threshold read. Each is
// constructed with a narrow capability bundle of just the collaborators
// it needs, rather than a back-pointer to a node "god object".
package statemachine

import (
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/secretsdb"
	"github.com/mash-protocol/mash-go/pkg/signing"
	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

// Network is the narrow sending capability every transaction needs; it is
// satisfied by *transport.Cluster.
type Network interface {
	Broadcast(msg interface{})
	SendTo(id uint32, msg interface{}) error
}

// ReplicaCapabilities bundles everything a replica-side transaction
// (ReplicaPut, ReplicaGet) needs.
type ReplicaCapabilities struct {
	Self    protocol.NodeID
	F       int
	Network Network

	Signer   signing.Signer
	Verifier signing.Verifier

	Store secretsdb.Store

	PublicKey thresholdenc.PublicKey
	Share     thresholdenc.KeyShare

	Logger protolog.Logger
}

// QuorumSize is the 2f+1 storage/decryption-safety quorum: enough
// replicas that at least f+1 of them are honest.
func (c ReplicaCapabilities) QuorumSize() int { return 2*c.F + 1 }

// GatewayCapabilities bundles everything a gateway-side coordinator
// transaction (GatewayEnroll, GatewayLogin) needs.
type GatewayCapabilities struct {
	Self    protocol.NodeID
	F       int
	ReplicaIDs []protocol.NodeID
	Network Network

	Signer   signing.Signer
	Verifier signing.Verifier

	// Identity is the gateway's SPAKE2+ server identity, bound into the
	// transcript on every login.
	Identity []byte

	Logger protolog.Logger
}

// LivenessQuorum is the f+1 gateway-liveness quorum: the gateway can act
// as soon as this many replicas agree, so it stays live even if up to f
// replicas are down or Byzantine.
func (c GatewayCapabilities) LivenessQuorum() int { return c.F + 1 }
