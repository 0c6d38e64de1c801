// Package signing provides the message-authentication service injected
// into every replica and gateway state machine. Every inter-node message's
// signature must verify against the claimed sender's registered public
// key before its contents are allowed to affect any state machine; the
// state machines in pkg/statemachine check this themselves on every
// message from another node (user requests carry no signature), and
// pkg/node's dispatch does no verification of its own.
//
// crypto/ed25519 is used directly here rather than a library wrapper: see
// DESIGN.md for why no third-party signing primitive was a better fit.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
)

// ErrVerificationFailed indicates a signature did not validate.
var ErrVerificationFailed = errors.New("signing: verification failed")

// ErrUnknownSigner indicates no public key is registered for a node id.
var ErrUnknownSigner = errors.New("signing: unknown signer id")

// Signer signs outbound messages with this node's private key.
type Signer interface {
	Sign(payload []byte) []byte
}

// Verifier verifies a message signature against the claimed sender's
// registered public key.
type Verifier interface {
	Verify(senderID uint32, payload, sig []byte) error
}

// Ed25519Signer signs with a node's own ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

// NewEd25519Signer wraps an existing private key.
func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{priv: priv}
}

// GenerateEd25519Key creates a fresh keypair, e.g. for a node's identity.
func GenerateEd25519Key() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs payload with the node's private key.
func (s *Ed25519Signer) Sign(payload []byte) []byte {
	return ed25519.Sign(s.priv, payload)
}

// KeyRing verifies signatures against a static id -> public key mapping,
// populated at startup from the cluster topology configuration.
type KeyRing struct {
	keys map[uint32]ed25519.PublicKey
}

// NewKeyRing builds a KeyRing from an id -> public key mapping.
func NewKeyRing(keys map[uint32]ed25519.PublicKey) *KeyRing {
	cp := make(map[uint32]ed25519.PublicKey, len(keys))
	for id, k := range keys {
		cp[id] = k
	}
	return &KeyRing{keys: cp}
}

// Verify checks sig over payload against the registered key for senderID.
func (r *KeyRing) Verify(senderID uint32, payload, sig []byte) error {
	pub, ok := r.keys[senderID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSigner, senderID)
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ErrVerificationFailed
	}
	return nil
}

var (
	_ Signer   = (*Ed25519Signer)(nil)
	_ Verifier = (*KeyRing)(nil)
)
