// Command replica runs one replica node: it stores encrypted verifier
// blobs on PUT and contributes decryption shares on GET, participating in
// the 2f+1 storage/decryption quorum alongside the other replicas named
// in the topology file.
//
// Usage:
//
//	replica -id 1 -topology topology.yaml -data-dir /var/lib/replica1
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mash-protocol/mash-go/pkg/config"
	"github.com/mash-protocol/mash-go/pkg/node"
	"github.com/mash-protocol/mash-go/pkg/protocol"
	"github.com/mash-protocol/mash-go/pkg/protolog"
	"github.com/mash-protocol/mash-go/pkg/secretsdb"
	"github.com/mash-protocol/mash-go/pkg/signing"
	"github.com/mash-protocol/mash-go/pkg/statemachine"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

// Config holds the replica's flags.
type Config struct {
	ID           uint
	TopologyFile string
	DataDir      string
	ProtocolLog  string
}

var cfg Config

func init() {
	flag.UintVar(&cfg.ID, "id", 0, "This replica's node id (must appear in the topology file)")
	flag.StringVar(&cfg.TopologyFile, "topology", "", "Path to the cluster topology YAML file")
	flag.StringVar(&cfg.DataDir, "data-dir", "", "Directory for persisted encrypted verifier storage")
	flag.StringVar(&cfg.ProtocolLog, "protocol-log", "", "File path for protocol event logging (CBOR format)")
}

func main() {
	flag.Parse()

	if cfg.ID == 0 {
		log.Fatal("replica: -id is required")
	}
	if cfg.TopologyFile == "" {
		log.Fatal("replica: -topology is required")
	}
	if cfg.DataDir == "" {
		log.Fatal("replica: -data-dir is required")
	}

	top, err := config.LoadTopology(cfg.TopologyFile)
	if err != nil {
		log.Fatalf("replica: loading topology: %v", err)
	}

	selfID := protocol.NodeID(cfg.ID)
	var selfEntry *config.ReplicaEntry
	for i := range top.Replicas {
		if protocol.NodeID(top.Replicas[i].ID) == selfID {
			selfEntry = &top.Replicas[i]
			break
		}
	}
	if selfEntry == nil {
		log.Fatalf("replica: id %d not found among topology replicas", cfg.ID)
	}

	priv, err := top.ReplicaPrivateKey(uint32(cfg.ID))
	if err != nil {
		log.Fatalf("replica: loading private key: %v", err)
	}

	pubKeys, err := top.PublicKeys()
	if err != nil {
		log.Fatalf("replica: loading public keys: %v", err)
	}
	keyRing := signing.NewKeyRing(pubKeys)

	share, err := top.ReplicaKeyShare(uint32(cfg.ID))
	if err != nil {
		log.Fatalf("replica: loading key share: %v", err)
	}
	pubPoint, err := top.ThresholdPublicKey()
	if err != nil {
		log.Fatalf("replica: loading threshold public key: %v", err)
	}

	var logger protolog.Logger = protolog.NoopLogger{}
	if cfg.ProtocolLog != "" {
		fileLogger, err := protolog.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			log.Fatalf("replica: opening protocol log: %v", err)
		}
		defer fileLogger.Close()
		logger = fileLogger
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("replica: creating data dir: %v", err)
	}
	store := secretsdb.NewFileStore(filepath.Join(cfg.DataDir, "verifiers.json"))
	if err := store.Load(); err != nil {
		log.Fatalf("replica: loading verifier store: %v", err)
	}

	peerAddrs := top.PeerAddrs(uint32(cfg.ID))
	cluster := transport.NewCluster(uint32(cfg.ID), selfEntry.Addr, peerAddrs, logger)
	if err := cluster.Start(); err != nil {
		log.Fatalf("replica: starting cluster listener: %v", err)
	}
	defer cluster.Close()

	caps := statemachine.ReplicaCapabilities{
		Self:      selfID,
		F:         top.F,
		Network:   cluster,
		Signer:    signing.NewEd25519Signer(priv),
		Verifier:  keyRing,
		Store:     store,
		PublicKey: pubPoint,
		Share:     share,
		Logger:    logger,
	}

	n := node.New(selfID, cluster, logger)
	n.Register(protocol.KindPut, statemachine.NewReplicaPutFactory(caps))
	n.Register(protocol.KindGet, statemachine.NewReplicaGetFactory(caps))

	log.Printf("replica %d listening on %s (n=%d f=%d)", cfg.ID, selfEntry.Addr, top.N, top.F)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("replica: shutting down")
		cancel()
	}()

	if err := n.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("replica: event loop exited: %v", err)
	}
}
