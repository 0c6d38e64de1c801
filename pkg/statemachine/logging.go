package statemachine

import (
	"time"

	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
)

// logTransition records a state machine's progress through a transaction
// so a protocol log can show, e.g., a replica receiving a Put or a
// gateway reaching quorum, without any state machine depending on a
// concrete logger implementation.
func logTransition(logger protolog.Logger, self protocol.NodeID, role protolog.Role, key protocol.TxKey, from, to, detail string) {
	if logger == nil {
		return
	}
	logger.Log(protolog.Event{
		Timestamp:   time.Now(),
		NodeID:      uint32(self),
		Role:        role,
		Category:    protolog.CategoryTransition,
		TxUsername:  key.Username,
		TxTimestamp: key.Timestamp,
		TxKind:      key.Kind.String(),
		FromState:   from,
		ToState:     to,
		Detail:      detail,
	})
}
