// Command gateway runs the gateway node: it is the only party users talk
// to, coordinating an enrollment or login across the replica set and
// requiring only f+1 agreeing replicas to make progress (the gateway
// liveness quorum).
//
// Usage:
//
//	gateway -topology topology.yaml -listen :9100
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"flag"

	"github.com/mash-protocol/mash-go/pkg/config"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/signing"
	"github.com/mash-protocol/mash-go/pkg/statemachine"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

// Config holds the gateway's flags.
type Config struct {
	TopologyFile string
	Listen       string
	ProtocolLog  string
}

var cfg Config

func init() {
	flag.StringVar(&cfg.TopologyFile, "topology", "", "Path to the cluster topology YAML file")
	flag.StringVar(&cfg.Listen, "listen", "", "Override the listen address from the topology file")
	flag.StringVar(&cfg.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
}

func main() {
	flag.Parse()

	if cfg.TopologyFile == "" {
		log.Fatal("gateway: -topology is required")
	}

	top, err := config.LoadTopology(cfg.TopologyFile)
	if err != nil {
		log.Fatalf("gateway: loading topology: %v", err)
	}

	listenAddr := cfg.Listen
	if listenAddr == "" {
		listenAddr = top.Gateway.Addr
	}

	priv, err := top.GatewayPrivateKey()
	if err != nil {
		log.Fatalf("gateway: loading private key: %v", err)
	}

	pubKeys, err := top.PublicKeys()
	if err != nil {
		log.Fatalf("gateway: loading public keys: %v", err)
	}
	keyRing := signing.NewKeyRing(pubKeys)

	var logger protolog.Logger = protolog.NoopLogger{}
	if cfg.ProtocolLog != "" {
		fileLogger, err := protolog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Fatalf("gateway: opening protocol log: %v", err)
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	selfID := protocol.NodeID(top.Gateway.ID)
	peerAddrs := top.PeerAddrs(top.Gateway.ID)
	cluster := transport.NewCluster(top.Gateway.ID, listenAddr, peerAddrs, logger)
	if err := cluster.Start(); err != nil {
		log.Fatalf("gateway: starting cluster listener: %v", err)
	}
	defer cluster.Close()

	caps := statemachine.GatewayCapabilities{
		Self:       selfID,
		F:          top.F,
		ReplicaIDs: top.ReplicaIDs(),
		Network:    cluster,
		Signer:     signing.NewEd25519Signer(priv),
		Verifier:   keyRing,
		Identity:   []byte("gateway"),
		Logger:     logger,
	}

	n := node.New(selfID, cluster, logger)
	n.Register(protocol.KindEnroll, statemachine.NewGatewayEnrollFactory(caps))
	n.Register(protocol.KindLogin, statemachine.NewGatewayLoginFactory(caps))

	log.Printf("gateway listening on %s (n=%d f=%d, liveness quorum f+1=%d)", listenAddr, top.N, top.F, top.F+1)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("gateway: shutting down")
		cancel()
	}()

	if err := n.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("gateway: event loop exited: %v", err)
	}
}
