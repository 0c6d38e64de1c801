// Package node is the shared per-node event loop and transaction
// registry/dispatch layer used by both the replica and gateway roles. It
// owns nothing about *what* a PUT or GET means; it only routes inbound
// messages to the right Transaction by (username, timestamp, kind) and
// runs everything from one goroutine, keeping transaction processing
// single-threaded even though pkg/transport reads each peer connection on
// its own goroutine.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

// Transaction is one running instance of a state machine keyed by a
// TxKey. Handle is called once per inbound message addressed to this
// transaction; Done reports whether the transaction has reached a
// terminal state and can be retired from the registry.
type Transaction interface {
	Handle(msg interface{}, from protocol.NodeID) error
	Done() bool
}

// Cluster is the subset of *transport.Cluster the event loop depends on.
// Accepting the interface rather than the concrete type lets tests drive
// dispatch with an in-memory fake instead of real sockets.
type Cluster interface {
	Inbound() <-chan transport.Inbound
	Broadcast(msg interface{})
	SendTo(id uint32, msg interface{}) error
}

// Factory constructs a fresh Transaction the first time a message for a
// not-yet-seen key arrives.
type Factory func(key protocol.TxKey) Transaction

// DefaultSweepInterval is how often the event loop checks for expired
// transactions and replay-guard entries.
const DefaultSweepInterval = 5 * time.Second

// DefaultTTL bounds how long an abandoned (never-completed) transaction,
// or a completed transaction's replay-guard entry, is retained.
const DefaultTTL = 2 * time.Minute

// Node runs the event loop: drain Cluster.Inbound(), dispatch each
// message to its transaction, periodically sweep expired state.
type Node struct {
	ID      protocol.NodeID
	Cluster Cluster
	Logger  protolog.Logger

	TTL           time.Duration
	SweepInterval time.Duration

	factories map[protocol.TxKind]Factory
	registry  map[protocol.TxKey]Transaction
	createdAt map[protocol.TxKey]time.Time

	// completed is the replay guard: once a transaction finishes, its key
	// is remembered here for TTL so a retransmitted terminal message
	// (e.g. a duplicated PutComplete) cannot reopen or re-run it.
	completed map[protocol.TxKey]time.Time
}

// New builds a Node. logger may be nil (NoopLogger is used).
func New(id protocol.NodeID, cluster Cluster, logger protolog.Logger) *Node {
	if logger == nil {
		logger = protolog.NoopLogger{}
	}
	return &Node{
		ID:            id,
		Cluster:       cluster,
		Logger:        logger,
		TTL:           DefaultTTL,
		SweepInterval: DefaultSweepInterval,
		factories:     make(map[protocol.TxKind]Factory),
		registry:      make(map[protocol.TxKey]Transaction),
		createdAt:     make(map[protocol.TxKey]time.Time),
		completed:     make(map[protocol.TxKey]time.Time),
	}
}

// Register installs the factory used to create transactions of kind.
func (n *Node) Register(kind protocol.TxKind, factory Factory) {
	n.factories[kind] = factory
}

// Run drains inbound messages and the sweep timer until ctx is canceled.
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-n.Cluster.Inbound():
			if !ok {
				return nil
			}
			n.dispatch(in)
		case <-ticker.C:
			n.sweep()
		}
	}
}

func (n *Node) dispatch(in transport.Inbound) {
	key, err := keyOf(in.Message)
	if err != nil {
		n.logError(err, "keying inbound message")
		return
	}

	if _, alreadyDone := n.completed[key]; alreadyDone {
		// Replay of an already-terminalized transaction: drop silently.
		return
	}

	tx, ok := n.registry[key]
	if !ok {
		if isResponseOnly(in.Message) {
			n.logError(fmt.Errorf("no live transaction for %s/%d", key.Kind, key.Timestamp), "response for unknown transaction")
			return
		}
		factory, ok := n.factories[key.Kind]
		if !ok {
			n.logError(fmt.Errorf("no factory registered for kind %s", key.Kind), "dispatch")
			return
		}
		tx = factory(key)
		n.registry[key] = tx
		n.createdAt[key] = time.Now()
	}

	if err := tx.Handle(in.Message, protocol.NodeID(in.From)); err != nil {
		n.logError(err, fmt.Sprintf("handling message for %s/%d", key.Kind, key.Timestamp))
	}

	if tx.Done() {
		delete(n.registry, key)
		delete(n.createdAt, key)
		n.completed[key] = time.Now()
	}
}

func (n *Node) sweep() {
	now := time.Now()
	for key, created := range n.createdAt {
		if now.Sub(created) > n.TTL {
			delete(n.registry, key)
			delete(n.createdAt, key)
		}
	}
	for key, finishedAt := range n.completed {
		if now.Sub(finishedAt) > n.TTL {
			delete(n.completed, key)
		}
	}
}

func (n *Node) logError(err error, detail string) {
	n.Logger.Log(protolog.Event{
		Timestamp: time.Now(),
		NodeID:    uint32(n.ID),
		Category:  protolog.CategoryError,
		Detail:    fmt.Sprintf("%s: %v", detail, err),
	})
}
