package transport

import (
	"testing"
	"time"

	"github.com/mash-protocol/mash-go/pkg/messages"
)

// waitInbound blocks until c delivers one Inbound message or the timeout
// elapses.
func waitInbound(t *testing.T, c *Cluster, timeout time.Duration) Inbound {
	t.Helper()
	select {
	case in := <-c.Inbound():
		return in
	case <-time.After(timeout):
		t.Fatal("timed out waiting for inbound message")
		return Inbound{}
	}
}

func TestClusterConnectsAndExchangesMessages(t *testing.T) {
	a := NewCluster(1, "127.0.0.1:0", nil, nil)
	if err := a.Start(); err != nil {
		t.Fatalf("a.Start: %v", err)
	}
	defer a.Close()

	b := NewCluster(2, "127.0.0.1:0", map[uint32]string{1: a.Addr().String()}, nil)
	if err := b.Start(); err != nil {
		t.Fatalf("b.Start: %v", err)
	}
	defer b.Close()

	// b has the higher id, so b.Start already dials a; a also dials b
	// directly here, and either connection lets a reach b.
	a.peers = map[uint32]string{2: b.Addr().String()}
	go a.dial(2, b.Addr().String())

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := a.SendTo(2, &messages.GetMessage{Key: "alice", ClientID: 1, Timestamp: 1}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("a never connected to b")
		}
		time.Sleep(10 * time.Millisecond)
	}

	in := waitInbound(t, b, 2*time.Second)
	get, ok := in.Message.(*messages.GetMessage)
	if !ok {
		t.Fatalf("expected *messages.GetMessage, got %T", in.Message)
	}
	if get.Key != "alice" || in.From != 1 {
		t.Errorf("unexpected message: %+v from %d", get, in.From)
	}
}
