package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/protolog"
)

// DefaultPort is the conventional first port of a cluster. Nothing in this
// package falls back to it: every listen and peer address carries its own
// port.
const DefaultPort = 9000

// dialRetryInterval is how long dial() waits between connection attempts
// to a peer that hasn't come up yet.
const dialRetryInterval = 500 * time.Millisecond

// Inbound is one decoded message received from a peer, delivered onto
// Cluster's channel for the node's own single-threaded event loop to
// drain. Each connection is read by its own goroutine, but handing
// everything off through one channel keeps message *processing*
// single-threaded.
type Inbound struct {
	From    uint32
	Message interface{}
}

// Peer is one established, framed connection to another node.
type Peer struct {
	id     uint32
	conn   net.Conn
	framer *Framer
	mu     sync.Mutex
}

// Send frames and writes msg to the peer.
func (p *Peer) Send(msg interface{}) error {
	data, err := messages.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encoding message for node %d: %w", p.id, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.framer.WriteFrame(data)
}

// Close closes the underlying connection.
func (p *Peer) Close() error { return p.conn.Close() }

// Cluster is a node's view of the whole system: its own listener plus a
// connection to every other node. It mirrors the original
// implementation's MessagingService: each node binds its own port, then
// Start dials every peer whose node id is lower than its own (retrying
// until the peer is up); the lower-id side never dials, learning who
// connected to it from the first frame (an IntroMessage) instead. Exactly
// one socket ends up open per pair. Connections are not opened on demand:
// SendTo a peer that is not connected yet returns an error.
type Cluster struct {
	selfID uint32
	addr   string
	peers  map[uint32]string // id -> "host:port"
	logger protolog.Logger

	mu    sync.Mutex
	conns map[uint32]*Peer

	inbound chan Inbound

	listener net.Listener
	closed   bool
}

// NewCluster builds a Cluster for selfID, listening on listenAddr, with
// the given id -> address map for every other node in the topology.
func NewCluster(selfID uint32, listenAddr string, peerAddrs map[uint32]string, logger protolog.Logger) *Cluster {
	if logger == nil {
		logger = protolog.NoopLogger{}
	}
	return &Cluster{
		selfID:  selfID,
		addr:    listenAddr,
		peers:   peerAddrs,
		logger:  logger,
		conns:   make(map[uint32]*Peer),
		inbound: make(chan Inbound, 256),
	}
}

// Inbound returns the channel the node's event loop drains for every
// message received from any peer, tagged with the sender's claimed id.
func (c *Cluster) Inbound() <-chan Inbound { return c.inbound }

// Start opens the listener and begins dialing every lower-id peer.
func (c *Cluster) Start() error {
	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", c.addr, err)
	}
	c.listener = ln
	go c.acceptLoop()

	for id, addr := range c.peers {
		if id < c.selfID {
			go c.dial(id, addr)
		}
	}
	return nil
}

// Addr returns the listener's bound address.
func (c *Cluster) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

func (c *Cluster) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return
		}
		go c.handleAccepted(conn)
	}
}

// handleAccepted expects the very first frame on an accepted connection
// to be an IntroMessage identifying the dialer.
func (c *Cluster) handleAccepted(conn net.Conn) {
	framer := NewFramer(conn)
	framer.SetLogger(c.logger, uint32(c.selfID))

	data, err := framer.ReadFrame()
	if err != nil {
		conn.Close()
		return
	}
	msg, err := messages.Decode(data)
	if err != nil {
		conn.Close()
		return
	}
	intro, ok := msg.(*messages.IntroMessage)
	if !ok {
		conn.Close()
		return
	}

	p := &Peer{id: intro.ID, conn: conn, framer: framer}
	c.registerPeer(p)
	c.readLoop(p)
}

// dial repeatedly attempts to connect to a not-yet-up peer: nodes may
// start in any order, and a failed connect is simply retried.
func (c *Cluster) dial(id uint32, addr string) {
	for {
		if c.isClosed() {
			return
		}
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			time.Sleep(dialRetryInterval)
			continue
		}

		framer := NewFramer(conn)
		framer.SetLogger(c.logger, uint32(c.selfID))

		intro := &messages.IntroMessage{ID: c.selfID}
		data, err := messages.Encode(intro)
		if err != nil {
			conn.Close()
			return
		}
		if err := framer.WriteFrame(data); err != nil {
			conn.Close()
			time.Sleep(dialRetryInterval)
			continue
		}

		p := &Peer{id: id, conn: conn, framer: framer}
		c.registerPeer(p)
		c.readLoop(p)
		return
	}
}

func (c *Cluster) registerPeer(p *Peer) {
	c.mu.Lock()
	c.conns[p.id] = p
	c.mu.Unlock()
}

func (c *Cluster) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Cluster) readLoop(p *Peer) {
	defer func() {
		c.mu.Lock()
		if c.conns[p.id] == p {
			delete(c.conns, p.id)
		}
		c.mu.Unlock()
		p.conn.Close()
	}()

	for {
		data, err := p.framer.ReadFrame()
		if err != nil {
			return
		}
		msg, err := messages.Decode(data)
		if err != nil {
			// A frame that does not decode as a known message is a
			// protocol violation: the deferred cleanup closes the
			// connection, and the frame is never dispatched.
			return
		}
		c.inbound <- Inbound{From: p.id, Message: msg}
	}
}

// SendTo sends msg to a single peer by id.
func (c *Cluster) SendTo(id uint32, msg interface{}) error {
	c.mu.Lock()
	p, ok := c.conns[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no connection to node %d", id)
	}
	return p.Send(msg)
}

// Broadcast sends msg to every currently connected peer, best-effort: a
// send failure to one peer does not block or fail sends to the others,
// matching the protocol's tolerance for unreachable/faulty replicas.
func (c *Cluster) Broadcast(msg interface{}) {
	c.mu.Lock()
	targets := make([]*Peer, 0, len(c.conns))
	for _, p := range c.conns {
		targets = append(targets, p)
	}
	c.mu.Unlock()

	for _, p := range targets {
		_ = p.Send(msg)
	}
}

// Close shuts down the listener and every peer connection.
func (c *Cluster) Close() error {
	c.mu.Lock()
	c.closed = true
	conns := make([]*Peer, 0, len(c.conns))
	for _, p := range c.conns {
		conns = append(conns, p)
	}
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.Close()
	}
	for _, p := range conns {
		p.Close()
	}
	return nil
}
