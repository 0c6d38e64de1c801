// Package config loads the YAML cluster topology that every cmd/
// entry point needs to wire a Node: the replica set, the gateway address,
// and every participant's Ed25519 signing key and (for replicas) its
// threshold-encryption key share. The replica and gateway binaries take
// only a handful of flags each (an id, a data directory, a topology path),
// so unlike a real deployment this single file is the sole source of key
// material — a toy-cluster convenience, not a production secret-
// distribution story.
package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

// ReplicaEntry is one replica's position in the topology.
type ReplicaEntry struct {
	ID         uint32 `yaml:"id"`
	Addr       string `yaml:"addr"`
	PublicKey  string `yaml:"public_key"`  // base64-encoded ed25519.PublicKey
	PrivateKey string `yaml:"private_key"` // base64-encoded ed25519.PrivateKey
	ShareIndex uint32 `yaml:"share_index"`
	Share      string `yaml:"share"` // decimal-encoded Shamir scalar
}

// GatewayEntry is the gateway's position in the topology.
type GatewayEntry struct {
	ID         uint32 `yaml:"id"`
	Addr       string `yaml:"addr"`
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
}

// Topology is the whole cluster's static membership and key material,
// shared by every node via the same YAML file.
type Topology struct {
	N                   int            `yaml:"n"`
	F                   int            `yaml:"f"`
	Replicas            []ReplicaEntry `yaml:"replicas"`
	Gateway             GatewayEntry   `yaml:"gateway"`
	ThresholdPublicKeyX string         `yaml:"threshold_public_key_x"`
	ThresholdPublicKeyY string         `yaml:"threshold_public_key_y"`
}

// LoadError wraps a topology load or validation failure with the file
// path that caused it.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// LoadTopology reads and validates a topology file.
func LoadTopology(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read topology file", Cause: err}
	}

	var top Topology
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, &LoadError{File: path, Message: "failed to parse YAML", Cause: err}
	}

	if err := top.Validate(); err != nil {
		return nil, &LoadError{File: path, Message: "invalid topology", Cause: err}
	}

	return &top, nil
}

// Validate checks the N=3f+1 invariant and that every entry is well-formed.
func (t *Topology) Validate() error {
	if t.F < 1 {
		return fmt.Errorf("f must be at least 1, got %d", t.F)
	}
	if t.N != 3*t.F+1 {
		return fmt.Errorf("n must equal 3f+1: n=%d, f=%d, 3f+1=%d", t.N, t.F, 3*t.F+1)
	}
	if len(t.Replicas) != t.N {
		return fmt.Errorf("expected %d replicas, topology lists %d", t.N, len(t.Replicas))
	}

	seen := make(map[uint32]bool, len(t.Replicas))
	for _, r := range t.Replicas {
		if seen[r.ID] {
			return fmt.Errorf("duplicate replica id %d", r.ID)
		}
		seen[r.ID] = true
		if r.Addr == "" {
			return fmt.Errorf("replica %d: addr is required", r.ID)
		}
		if _, err := decodePublicKey(r.PublicKey); err != nil {
			return fmt.Errorf("replica %d: %w", r.ID, err)
		}
		if _, err := decodePrivateKey(r.PrivateKey); err != nil {
			return fmt.Errorf("replica %d: %w", r.ID, err)
		}
		if _, ok := new(big.Int).SetString(r.Share, 10); !ok {
			return fmt.Errorf("replica %d: invalid threshold key share", r.ID)
		}
	}

	if t.Gateway.Addr == "" {
		return fmt.Errorf("gateway: addr is required")
	}
	if _, err := decodePublicKey(t.Gateway.PublicKey); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	if _, err := decodePrivateKey(t.Gateway.PrivateKey); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	if _, ok := new(big.Int).SetString(t.ThresholdPublicKeyX, 10); !ok {
		return fmt.Errorf("invalid threshold_public_key_x")
	}
	if _, ok := new(big.Int).SetString(t.ThresholdPublicKeyY, 10); !ok {
		return fmt.Errorf("invalid threshold_public_key_y")
	}

	return nil
}

// PeerAddrs returns the id -> addr map pkg/transport.NewCluster expects
// for every node other than self.
func (t *Topology) PeerAddrs(self uint32) map[uint32]string {
	addrs := make(map[uint32]string, len(t.Replicas))
	for _, r := range t.Replicas {
		if r.ID != self {
			addrs[r.ID] = r.Addr
		}
	}
	if t.Gateway.ID != self {
		addrs[t.Gateway.ID] = t.Gateway.Addr
	}
	return addrs
}

// ReplicaIDs returns every replica's NodeID, in topology order.
func (t *Topology) ReplicaIDs() []protocol.NodeID {
	ids := make([]protocol.NodeID, len(t.Replicas))
	for i, r := range t.Replicas {
		ids[i] = protocol.NodeID(r.ID)
	}
	return ids
}

// PublicKeys returns every participant's verification key, keyed by node
// id, for pkg/signing.NewKeyRing.
func (t *Topology) PublicKeys() (map[uint32]ed25519.PublicKey, error) {
	keys := make(map[uint32]ed25519.PublicKey, len(t.Replicas)+1)
	for _, r := range t.Replicas {
		pub, err := decodePublicKey(r.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("replica %d: %w", r.ID, err)
		}
		keys[r.ID] = pub
	}
	pub, err := decodePublicKey(t.Gateway.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	keys[t.Gateway.ID] = pub
	return keys, nil
}

// ReplicaPrivateKey returns the signing key for replica id.
func (t *Topology) ReplicaPrivateKey(id uint32) (ed25519.PrivateKey, error) {
	for _, r := range t.Replicas {
		if r.ID == id {
			return decodePrivateKey(r.PrivateKey)
		}
	}
	return nil, fmt.Errorf("replica %d not found in topology", id)
}

// GatewayPrivateKey returns the gateway's signing key.
func (t *Topology) GatewayPrivateKey() (ed25519.PrivateKey, error) {
	return decodePrivateKey(t.Gateway.PrivateKey)
}

// ReplicaKeyShare returns replica id's threshold-encryption key share.
func (t *Topology) ReplicaKeyShare(id uint32) (thresholdenc.KeyShare, error) {
	for _, r := range t.Replicas {
		if r.ID == id {
			scalar, ok := new(big.Int).SetString(r.Share, 10)
			if !ok {
				return thresholdenc.KeyShare{}, fmt.Errorf("replica %d: invalid threshold key share", id)
			}
			return thresholdenc.KeyShare{Index: r.ShareIndex, Scalar: scalar}, nil
		}
	}
	return thresholdenc.KeyShare{}, fmt.Errorf("replica %d not found in topology", id)
}

// ThresholdPublicKey returns the cluster's shared threshold-encryption
// public key.
func (t *Topology) ThresholdPublicKey() (thresholdenc.PublicKey, error) {
	x, ok := new(big.Int).SetString(t.ThresholdPublicKeyX, 10)
	if !ok {
		return thresholdenc.PublicKey{}, fmt.Errorf("invalid threshold_public_key_x")
	}
	y, ok := new(big.Int).SetString(t.ThresholdPublicKeyY, 10)
	if !ok {
		return thresholdenc.PublicKey{}, fmt.Errorf("invalid threshold_public_key_y")
	}
	return thresholdenc.PublicKey{X: x, Y: y}, nil
}

func decodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

func decodePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}
