package node

import (
	"context"
	"testing"
	"time"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

// fakeCluster is an in-memory node.Cluster used to drive dispatch without
// real sockets.
type fakeCluster struct {
	inbound chan transport.Inbound
	sent    []interface{}
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{inbound: make(chan transport.Inbound, 16)}
}

func (f *fakeCluster) Inbound() <-chan transport.Inbound { return f.inbound }
func (f *fakeCluster) Broadcast(msg interface{})         { f.sent = append(f.sent, msg) }
func (f *fakeCluster) SendTo(id uint32, msg interface{}) error {
	f.sent = append(f.sent, msg)
	return nil
}

// countingTx is a minimal Transaction that finishes after N calls.
type countingTx struct {
	calls int
	limit int
}

func (tx *countingTx) Handle(msg interface{}, from protocol.NodeID) error {
	tx.calls++
	return nil
}
func (tx *countingTx) Done() bool { return tx.calls >= tx.limit }

func TestNodeDispatchRoutesByKey(t *testing.T) {
	fc := newFakeCluster()
	n := New(1, fc, nil)

	var created int
	n.Register(protocol.KindGet, func(key protocol.TxKey) Transaction {
		created++
		return &countingTx{limit: 2}
	})

	get := &messages.GetMessage{Key: "alice", ClientID: 9, Timestamp: 42}
	fc.inbound <- transport.Inbound{From: 9, Message: get}
	fc.inbound <- transport.Inbound{From: 9, Message: get}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go n.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	if created != 1 {
		t.Errorf("expected exactly one transaction created for one key, got %d", created)
	}
	if len(n.registry) != 0 {
		t.Errorf("expected the finished transaction to be retired, registry has %d entries", len(n.registry))
	}
	if _, ok := n.completed[protocol.GetKey("alice", 42)]; !ok {
		t.Error("expected the finished transaction's key to be remembered as completed")
	}
}

func TestNodeDispatchDropsReplay(t *testing.T) {
	fc := newFakeCluster()
	n := New(1, fc, nil)

	var created int
	n.Register(protocol.KindGet, func(key protocol.TxKey) Transaction {
		created++
		return &countingTx{limit: 1}
	})

	get := &messages.GetMessage{Key: "bob", ClientID: 9, Timestamp: 7}
	fc.inbound <- transport.Inbound{From: 9, Message: get}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go n.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	// A retransmitted copy of the same terminal message must not reopen
	// or re-run the transaction.
	fc.inbound <- transport.Inbound{From: 9, Message: get}
	time.Sleep(50 * time.Millisecond)

	if created != 1 {
		t.Errorf("expected the replay to be dropped without creating a new transaction, got %d creations", created)
	}
}

func TestNodeSweepExpiresAbandonedTransactions(t *testing.T) {
	fc := newFakeCluster()
	n := New(1, fc, nil)
	n.TTL = 10 * time.Millisecond
	n.SweepInterval = 5 * time.Millisecond

	n.Register(protocol.KindGet, func(key protocol.TxKey) Transaction {
		return &countingTx{limit: 1000} // never completes on its own
	})

	fc.inbound <- transport.Inbound{From: 9, Message: &messages.GetMessage{Key: "carol", ClientID: 9, Timestamp: 1}}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go n.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	if len(n.registry) != 0 {
		t.Errorf("expected abandoned transaction to be swept, registry has %d entries", len(n.registry))
	}
}
