package signing

import (
	"crypto/ed25519"
	"testing"
)

func TestEd25519SignAndVerify(t *testing.T) {
	pub, priv, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key failed: %v", err)
	}
	signer := NewEd25519Signer(priv)
	ring := NewKeyRing(map[uint32]ed25519.PublicKey{1: pub})

	payload := []byte("put message payload")
	sig := signer.Sign(payload)

	if err := ring.Verify(1, payload, sig); err != nil {
		t.Errorf("Verify rejected a valid signature: %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := GenerateEd25519Key()
	if err != nil {
		t.Fatalf("GenerateEd25519Key failed: %v", err)
	}
	signer := NewEd25519Signer(priv)
	ring := NewKeyRing(map[uint32]ed25519.PublicKey{1: pub})

	sig := signer.Sign([]byte("original"))
	if err := ring.Verify(1, []byte("tampered"), sig); err != ErrVerificationFailed {
		t.Errorf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestVerifyRejectsUnknownSigner(t *testing.T) {
	ring := NewKeyRing(nil)
	if err := ring.Verify(99, []byte("x"), []byte("y")); err == nil {
		t.Error("expected an error for an unregistered signer id")
	}
}
