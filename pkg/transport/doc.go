// Package transport is the node-to-node networking layer: length-prefixed
// JSON framing (Framer/FrameReader/FrameWriter) plus a Cluster type that
// opens exactly one plain TCP connection per pair of nodes, using the
// higher-id-dials-lower-id symmetry-breaking rule (node ids, not ports,
// decide which side dials) and an IntroMessage handshake to identify the
// dialer. Connections are dialed when the Cluster starts, not on first
// send; sending to a peer with no connection yet returns an error. There is no TLS and no connection-level
// identity: every message that must be trusted carries its own signature
// (see pkg/signing), since a Byzantine node can always open a raw socket.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON Messages             │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
package transport
