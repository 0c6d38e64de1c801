package spake2plus

import (
	"bytes"
	"testing"
)

func TestSPAKE2PlusMatchingPasswordsAgree(t *testing.T) {
	clientIdentity := []byte("alice")
	serverIdentity := []byte("gateway")
	password := []byte("correct horse battery staple")

	verifier, err := PasswordToSecretB(password, clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("PasswordToSecretB failed: %v", err)
	}

	client, err := NewClientRole(password, clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("NewClientRole failed: %v", err)
	}
	server, err := NewServerRole(verifier, clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("NewServerRole failed: %v", err)
	}

	u := client.Start()
	v := server.Start()

	serverKey, err := server.Finish(u)
	if err != nil {
		t.Fatalf("server.Finish failed: %v", err)
	}
	clientKey, clientConfirm, err := client.Finish(v)
	if err != nil {
		t.Fatalf("client.Finish failed: %v", err)
	}

	if !bytes.Equal(serverKey, clientKey) {
		t.Fatalf("shared keys disagree:\nclient: %x\nserver: %x", clientKey, serverKey)
	}
	if len(clientConfirm) != ConfirmationSize {
		t.Errorf("unexpected client confirmation length: %d", len(clientConfirm))
	}

	serverConfirm := server.Confirmation()
	if err := client.VerifyServerConfirmation(serverConfirm); err != nil {
		t.Errorf("client rejected a valid server confirmation: %v", err)
	}
}

func TestSPAKE2PlusMismatchedPasswordsDisagree(t *testing.T) {
	clientIdentity := []byte("alice")
	serverIdentity := []byte("gateway")

	verifier, err := PasswordToSecretB([]byte("right password"), clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("PasswordToSecretB failed: %v", err)
	}
	client, err := NewClientRole([]byte("wrong password"), clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("NewClientRole failed: %v", err)
	}
	server, err := NewServerRole(verifier, clientIdentity, serverIdentity)
	if err != nil {
		t.Fatalf("NewServerRole failed: %v", err)
	}

	u := client.Start()
	v := server.Start()

	serverKey, err := server.Finish(u)
	if err != nil {
		t.Fatalf("server.Finish failed: %v", err)
	}
	clientKey, _, err := client.Finish(v)
	if err != nil {
		t.Fatalf("client.Finish failed: %v", err)
	}

	if bytes.Equal(serverKey, clientKey) {
		t.Fatal("mismatched passwords produced the same shared key")
	}

	serverConfirm := server.Confirmation()
	if err := client.VerifyServerConfirmation(serverConfirm); err == nil {
		t.Error("client accepted a server confirmation derived from a different password")
	}
}

func TestVerifierBytesRoundTrip(t *testing.T) {
	v, err := PasswordToSecretB([]byte("pw"), []byte("c"), []byte("s"))
	if err != nil {
		t.Fatalf("PasswordToSecretB failed: %v", err)
	}

	blob := v.Bytes()
	parsed, err := ParseVerifier(blob)
	if err != nil {
		t.Fatalf("ParseVerifier failed: %v", err)
	}

	if !bytes.Equal(v.Pi0, parsed.Pi0) || !bytes.Equal(v.C, parsed.C) {
		t.Errorf("verifier did not round-trip: got %+v, want %+v", parsed, v)
	}
}
