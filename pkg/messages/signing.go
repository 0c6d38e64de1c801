package messages

import "encoding/json"

// Signable is implemented by every message variant that carries a
// signature. Payload returns the canonical bytes the signature covers
// (the message with Sig cleared); AttachSignature/SignatureBytes round
// out the pattern.
type Signable interface {
	Payload() ([]byte, error)
	SignatureBytes() []byte
	AttachSignature(sig []byte)
}

var (
	_ Signable = (*PutMessage)(nil)
	_ Signable = (*PutAcceptMessage)(nil)
	_ Signable = (*PutCompleteMessage)(nil)
	_ Signable = (*GetMessage)(nil)
	_ Signable = (*DecryptionShareMessage)(nil)
	_ Signable = (*GetResponseMessage)(nil)
)

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *PutMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *PutMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *PutMessage) AttachSignature(sig []byte) { m.Sig = sig }

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *PutAcceptMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *PutAcceptMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *PutAcceptMessage) AttachSignature(sig []byte) { m.Sig = sig }

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *PutCompleteMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *PutCompleteMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *PutCompleteMessage) AttachSignature(sig []byte) { m.Sig = sig }

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *GetMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *GetMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *GetMessage) AttachSignature(sig []byte) { m.Sig = sig }

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *DecryptionShareMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *DecryptionShareMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *DecryptionShareMessage) AttachSignature(sig []byte) { m.Sig = sig }

// Payload returns the canonical JSON bytes of the message with Sig cleared.
func (m *GetResponseMessage) Payload() ([]byte, error) { return json.Marshal(m.SignableCopy()) }

// SignatureBytes returns the attached signature.
func (m *GetResponseMessage) SignatureBytes() []byte { return m.Sig }

// AttachSignature attaches a signature to the message.
func (m *GetResponseMessage) AttachSignature(sig []byte) { m.Sig = sig }
