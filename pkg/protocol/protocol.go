// Package protocol defines the identifiers and transaction keys shared by
// every role (user, gateway, replica) in the BFT PAKE secret store.
package protocol

import "fmt"

// NodeID identifies a participant. Replica ids are the ones the cluster
// topology assigns (cmd/replica rejects 0, so they start at 1); the
// gateway and users use ids outside the replica set.
type NodeID uint32

// TxKind distinguishes the four state-machine families that share the
// per-node transaction registry.
type TxKind uint8

const (
	// KindPut is a replica-side replicated write.
	KindPut TxKind = iota
	// KindGet is a replica-side threshold read.
	KindGet
	// KindEnroll is the gateway-side enroll (put) coordinator.
	KindEnroll
	// KindLogin is the gateway-side login (get) coordinator.
	KindLogin
)

// String returns the kind name.
func (k TxKind) String() string {
	switch k {
	case KindPut:
		return "PUT"
	case KindGet:
		return "GET"
	case KindEnroll:
		return "ENROLL"
	case KindLogin:
		return "LOGIN"
	default:
		return fmt.Sprintf("TxKind(%d)", k)
	}
}

// TxKey identifies one protocol run by (username, timestamp, kind). It is
// comparable and usable directly as a map key.
//
// Gateway-side ENROLL transactions are keyed by timestamp alone: Username
// is left empty for KindEnroll keys, and dispatch derives the same
// empty-username key from the user's EnrollRequest and from each
// replica's PutComplete reply (which embeds the original PutMessage).
type TxKey struct {
	Username  string
	Timestamp uint64
	Kind      TxKind
}

// PutKey builds the key a replica uses for a Put/PutAccept transaction.
func PutKey(username string, ts uint64) TxKey {
	return TxKey{Username: username, Timestamp: ts, Kind: KindPut}
}

// GetKey builds the key a replica uses for a Get/DecryptionShare transaction.
func GetKey(username string, ts uint64) TxKey {
	return TxKey{Username: username, Timestamp: ts, Kind: KindGet}
}

// EnrollKey builds the key the gateway uses for an enroll transaction.
func EnrollKey(ts uint64) TxKey {
	return TxKey{Timestamp: ts, Kind: KindEnroll}
}

// LoginKey builds the key the gateway uses for a login transaction.
func LoginKey(username string, ts uint64) TxKey {
	return TxKey{Username: username, Timestamp: ts, Kind: KindLogin}
}
