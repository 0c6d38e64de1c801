// Package messages defines the JSON message schema exchanged between
// users, gateways, and replicas, and the tagged-envelope helpers used to
// encode, decode, sign, and verify them.
//
// Every message is transmitted length-prefixed (see pkg/transport) as a
// UTF-8 JSON object whose "type" field selects the variant, following a
// tagged-envelope convention with plain JSON encoding rather than a
// binary wire format.
package messages

import (
	"encoding/json"
	"fmt"
)

// Type tags the JSON envelope so a receiver can select the concrete
// message variant before unmarshaling the rest of the payload.
type Type string

// Envelope type tags, one per message variant.
const (
	TypeIntro           Type = "intro"
	TypeEnrollRequest   Type = "enroll_request"
	TypeEnrollResponse  Type = "enroll_response"
	TypeLoginRequest    Type = "login_request"
	TypeLoginResponse   Type = "login_response"
	TypePut             Type = "put"
	TypePutAccept       Type = "put_accept"
	TypePutComplete     Type = "put_complete"
	TypeGet             Type = "get"
	TypeDecryptionShare Type = "decryption_share"
	TypeGetResponse     Type = "get_response"
)

// Envelope is the outer JSON object carried over the wire. Exactly one of
// the typed fields below is populated, selected by Type.
type Envelope struct {
	Type Type `json:"type"`

	Intro           *IntroMessage           `json:"intro,omitempty"`
	EnrollRequest   *EnrollRequest          `json:"enroll_request,omitempty"`
	EnrollResponse  *EnrollResponse         `json:"enroll_response,omitempty"`
	LoginRequest    *LoginRequest           `json:"login_request,omitempty"`
	LoginResponse   *LoginResponse          `json:"login_response,omitempty"`
	Put             *PutMessage             `json:"put,omitempty"`
	PutAccept       *PutAcceptMessage       `json:"put_accept,omitempty"`
	PutComplete     *PutCompleteMessage     `json:"put_complete,omitempty"`
	Get             *GetMessage             `json:"get,omitempty"`
	DecryptionShare *DecryptionShareMessage `json:"decryption_share,omitempty"`
	GetResponse     *GetResponseMessage     `json:"get_response,omitempty"`
}

// IntroMessage is the first message sent on every outbound connection; it
// tells the acceptor which node id dialed it.
type IntroMessage struct {
	ID uint32 `json:"id"`
}

// EnrollRequest is sent user -> gateway to register a username/password.
type EnrollRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	UserID    uint32 `json:"user_id"`
	Timestamp uint64 `json:"timestamp"`
}

// EnrollResponse is sent gateway -> user once f+1 replicas confirm storage.
type EnrollResponse struct {
	Username  string `json:"username"`
	Timestamp uint64 `json:"timestamp"`
}

// LoginRequest is sent user -> gateway carrying the SPAKE2+ client element.
type LoginRequest struct {
	Username  string `json:"username"`
	U         []byte `json:"u"`
	UserID    uint32 `json:"user_id"`
	Timestamp uint64 `json:"timestamp"`
}

// LoginResponse is sent gateway -> user carrying the server element and a
// key-confirmation tag.
type LoginResponse struct {
	Username     string `json:"username"`
	V            []byte `json:"v"`
	Confirmation []byte `json:"confirmation"`
	Timestamp    uint64 `json:"timestamp"`
}

// PutMessage is the gateway's replicated-write request, also embedded
// verbatim inside PutAcceptMessage/PutCompleteMessage.
type PutMessage struct {
	Key       string `json:"key"`
	Secret    []byte `json:"secret"`
	ClientID  uint32 `json:"client_id"`
	Timestamp uint64 `json:"timestamp"`
	Sig       []byte `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared, for use as
// the canonical bytes that a signature covers.
func (m PutMessage) SignableCopy() PutMessage {
	m.Sig = nil
	return m
}

// PutAcceptMessage is a replica's acceptance of an embedded PutMessage,
// broadcast to every other replica.
type PutAcceptMessage struct {
	PutMsg   PutMessage `json:"put_msg"`
	SenderID uint32     `json:"sender_id"`
	Sig      []byte     `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared.
func (m PutAcceptMessage) SignableCopy() PutAcceptMessage {
	m.Sig = nil
	return m
}

// PutCompleteMessage is a replica's confirmation, sent to the gateway, that
// the embedded PutMessage has been durably stored.
type PutCompleteMessage struct {
	PutMsg   PutMessage `json:"put_msg"`
	SenderID uint32     `json:"sender_id"`
	Sig      []byte     `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared.
func (m PutCompleteMessage) SignableCopy() PutCompleteMessage {
	m.Sig = nil
	return m
}

// GetMessage is the gateway's threshold-read request.
type GetMessage struct {
	Key       string `json:"key"`
	ClientID  uint32 `json:"client_id"`
	Timestamp uint64 `json:"timestamp"`
	Sig       []byte `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared.
func (m GetMessage) SignableCopy() GetMessage {
	m.Sig = nil
	return m
}

// DecryptionShareMessage is a replica's partial decryption, broadcast to
// every other replica.
type DecryptionShareMessage struct {
	DecryptionShare []byte     `json:"decryption_share"`
	SenderID        uint32     `json:"sender_id"`
	GetMsg          GetMessage `json:"get_message"`
	Sig             []byte     `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared.
func (m DecryptionShareMessage) SignableCopy() DecryptionShareMessage {
	m.Sig = nil
	return m
}

// GetResponseMessage is a replica's reply to the gateway once it has
// combined enough decryption shares to recover the verifier blob.
type GetResponseMessage struct {
	GetMsg   GetMessage `json:"get_msg"`
	Secret   []byte     `json:"secret"`
	SenderID uint32     `json:"sender_id"`
	Sig      []byte     `json:"sig,omitempty"`
}

// SignableCopy returns a copy of the message with Sig cleared.
func (m GetResponseMessage) SignableCopy() GetResponseMessage {
	m.Sig = nil
	return m
}

// Wrap builds the tagged Envelope for a concrete message value.
func Wrap(m interface{}) (*Envelope, error) {
	switch v := m.(type) {
	case *IntroMessage:
		return &Envelope{Type: TypeIntro, Intro: v}, nil
	case *EnrollRequest:
		return &Envelope{Type: TypeEnrollRequest, EnrollRequest: v}, nil
	case *EnrollResponse:
		return &Envelope{Type: TypeEnrollResponse, EnrollResponse: v}, nil
	case *LoginRequest:
		return &Envelope{Type: TypeLoginRequest, LoginRequest: v}, nil
	case *LoginResponse:
		return &Envelope{Type: TypeLoginResponse, LoginResponse: v}, nil
	case *PutMessage:
		return &Envelope{Type: TypePut, Put: v}, nil
	case *PutAcceptMessage:
		return &Envelope{Type: TypePutAccept, PutAccept: v}, nil
	case *PutCompleteMessage:
		return &Envelope{Type: TypePutComplete, PutComplete: v}, nil
	case *GetMessage:
		return &Envelope{Type: TypeGet, Get: v}, nil
	case *DecryptionShareMessage:
		return &Envelope{Type: TypeDecryptionShare, DecryptionShare: v}, nil
	case *GetResponseMessage:
		return &Envelope{Type: TypeGetResponse, GetResponse: v}, nil
	default:
		return nil, fmt.Errorf("messages: unknown message type %T", m)
	}
}

// Unwrap extracts the concrete message value carried by an Envelope.
func Unwrap(e *Envelope) (interface{}, error) {
	switch e.Type {
	case TypeIntro:
		return e.Intro, nil
	case TypeEnrollRequest:
		return e.EnrollRequest, nil
	case TypeEnrollResponse:
		return e.EnrollResponse, nil
	case TypeLoginRequest:
		return e.LoginRequest, nil
	case TypeLoginResponse:
		return e.LoginResponse, nil
	case TypePut:
		return e.Put, nil
	case TypePutAccept:
		return e.PutAccept, nil
	case TypePutComplete:
		return e.PutComplete, nil
	case TypeGet:
		return e.Get, nil
	case TypeDecryptionShare:
		return e.DecryptionShare, nil
	case TypeGetResponse:
		return e.GetResponse, nil
	default:
		return nil, fmt.Errorf("messages: unknown envelope type %q", e.Type)
	}
}

// Encode marshals a concrete message to its tagged JSON envelope form.
func Encode(m interface{}) ([]byte, error) {
	e, err := Wrap(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode unmarshals a tagged JSON envelope and returns the concrete
// message value it carries.
func Decode(data []byte) (interface{}, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("messages: malformed envelope: %w", err)
	}
	return Unwrap(&e)
}
