package node

import (
	"fmt"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/protocol"
)

// keyOf derives the TxKey a message belongs to. IntroMessage never
// reaches here: pkg/transport consumes it during connection setup.
func keyOf(msg interface{}) (protocol.TxKey, error) {
	switch v := msg.(type) {
	case *messages.EnrollRequest:
		return protocol.EnrollKey(v.Timestamp), nil
	case *messages.PutMessage:
		return protocol.PutKey(v.Key, v.Timestamp), nil
	case *messages.PutAcceptMessage:
		return protocol.PutKey(v.PutMsg.Key, v.PutMsg.Timestamp), nil
	case *messages.PutCompleteMessage:
		return protocol.EnrollKey(v.PutMsg.Timestamp), nil
	case *messages.LoginRequest:
		return protocol.LoginKey(v.Username, v.Timestamp), nil
	case *messages.GetMessage:
		return protocol.GetKey(v.Key, v.Timestamp), nil
	case *messages.DecryptionShareMessage:
		return protocol.GetKey(v.GetMsg.Key, v.GetMsg.Timestamp), nil
	case *messages.GetResponseMessage:
		return protocol.LoginKey(v.GetMsg.Key, v.GetMsg.Timestamp), nil
	default:
		return protocol.TxKey{}, fmt.Errorf("node: unrecognized message type %T", msg)
	}
}

// isResponseOnly reports whether msg is a reply a coordinator transaction
// expects once it is already running (a replica's PutComplete or
// GetResponse arriving at the gateway), as opposed to a message that may
// legitimately be the first one a transaction ever sees. Dispatch must
// not fabricate a transaction for these: an unmatched response means the
// coordinator that should be waiting for it is gone or was never
// started, which is a protocol violation, not a fresh request.
func isResponseOnly(msg interface{}) bool {
	switch msg.(type) {
	case *messages.PutCompleteMessage, *messages.GetResponseMessage:
		return true
	default:
		return false
	}
}
