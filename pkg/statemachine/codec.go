package statemachine

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

// ciphertextWire is the JSON-serializable shape of thresholdenc.Ciphertext,
// used to persist it in secretsdb.
type ciphertextWire struct {
	EphemeralX *big.Int `json:"ephemeral_x"`
	EphemeralY *big.Int `json:"ephemeral_y"`
	Nonce      []byte   `json:"nonce"`
	Sealed     []byte   `json:"sealed"`
}

func marshalCiphertext(ct thresholdenc.Ciphertext) ([]byte, error) {
	return json.Marshal(ciphertextWire{
		EphemeralX: ct.EphemeralX,
		EphemeralY: ct.EphemeralY,
		Nonce:      ct.Nonce,
		Sealed:     ct.Sealed,
	})
}

func unmarshalCiphertext(data []byte) (thresholdenc.Ciphertext, error) {
	var w ciphertextWire
	if err := json.Unmarshal(data, &w); err != nil {
		return thresholdenc.Ciphertext{}, fmt.Errorf("statemachine: decoding ciphertext: %w", err)
	}
	return thresholdenc.Ciphertext{
		EphemeralX: w.EphemeralX,
		EphemeralY: w.EphemeralY,
		Nonce:      w.Nonce,
		Sealed:     w.Sealed,
	}, nil
}

// decryptionShareWire is the JSON-serializable shape of a
// thresholdenc.DecryptionShare, carried inside DecryptionShareMessage.
type decryptionShareWire struct {
	Index uint32   `json:"index"`
	X     *big.Int `json:"x"`
	Y     *big.Int `json:"y"`
}

func marshalDecryptionShare(s thresholdenc.DecryptionShare) ([]byte, error) {
	return json.Marshal(decryptionShareWire{Index: s.Index, X: s.X, Y: s.Y})
}

func unmarshalDecryptionShare(data []byte) (thresholdenc.DecryptionShare, error) {
	var w decryptionShareWire
	if err := json.Unmarshal(data, &w); err != nil {
		return thresholdenc.DecryptionShare{}, fmt.Errorf("statemachine: decoding decryption share: %w", err)
	}
	return thresholdenc.DecryptionShare{Index: w.Index, X: w.X, Y: w.Y}, nil
}
