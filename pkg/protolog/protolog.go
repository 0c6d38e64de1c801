// Package protolog is the structured protocol-event logging facility
// the replica and gateway roles use to record what they sent,
// received, and decided: wire frames, state machine transitions, and
// errors, each keyed to the transaction it belongs to. Logger is the
// single interface every role depends on; NoopLogger, MultiLogger,
// SlogAdapter, and the CBOR-backed FileLogger are its implementations.
package protolog

import "time"

// Logger receives protocol log events. Pass NoopLogger to disable
// logging; implementations must be safe for concurrent use.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards every event and is usable as a zero value.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}

// Direction indicates message flow relative to the logging node.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which part of the system logged the event.
type Role uint8

const (
	RoleReplica Role = iota
	RoleGateway
	RoleUser
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleReplica:
		return "REPLICA"
	case RoleGateway:
		return "GATEWAY"
	case RoleUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event for filtering.
type Category uint8

const (
	CategoryFrame Category = iota
	CategoryTransition
	CategoryError
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryTransition:
		return "TRANSITION"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is one protocol log record: either a wire frame, a state machine
// transition, or an error, keyed to the transaction it belongs to.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	NodeID    uint32    `cbor:"2,keyasint"`
	Role      Role      `cbor:"3,keyasint"`
	Direction Direction `cbor:"4,keyasint,omitempty"`
	Category  Category  `cbor:"5,keyasint"`

	// TxUsername/TxTimestamp/TxKind identify the transaction this event
	// belongs to, matching protocol.TxKey's three fields without this
	// low-level package depending on pkg/protocol.
	TxUsername  string `cbor:"6,keyasint,omitempty"`
	TxTimestamp uint64 `cbor:"7,keyasint,omitempty"`
	TxKind      string `cbor:"8,keyasint,omitempty"`

	// MessageType is the wire message tag (messages.Type). The framing
	// layer logs raw frames and leaves it empty.
	MessageType string `cbor:"9,keyasint,omitempty"`

	// FromState/ToState are set for CategoryTransition events.
	FromState string `cbor:"10,keyasint,omitempty"`
	ToState   string `cbor:"11,keyasint,omitempty"`

	// Detail is a short human-readable note: the frame size for
	// CategoryFrame events, the error for CategoryError events, or an
	// annotation on a transition.
	Detail string `cbor:"12,keyasint,omitempty"`
}

// MultiLogger fans an event out to every configured logger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger builds a MultiLogger over the given loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log sends the event to every configured logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
