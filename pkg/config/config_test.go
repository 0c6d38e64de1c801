package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/mash-go/pkg/thresholdenc"
)

func writeTopology(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func genKeyPair(t *testing.T) (pubB64, privB64 string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv)
}

func replicaEntryYAML(t *testing.T, id int, addr string, share thresholdenc.KeyShare) string {
	t.Helper()
	pub, priv := genKeyPair(t)
	return "  - id: " + strconv.Itoa(id) + "\n" +
		`    addr: "` + addr + "\"\n" +
		`    public_key: "` + pub + "\"\n" +
		`    private_key: "` + priv + "\"\n" +
		"    share_index: " + strconv.Itoa(int(share.Index)) + "\n" +
		`    share: "` + share.Scalar.String() + "\"\n"
}

func validTopologyYAML(t *testing.T) string {
	t.Helper()
	pubKey, shares, err := thresholdenc.Deal(4, 3)
	require.NoError(t, err)

	gwPub, gwPriv := genKeyPair(t)

	var b strings.Builder
	b.WriteString("n: 4\nf: 1\nreplicas:\n")
	addrs := []string{"127.0.0.1:9001", "127.0.0.1:9002", "127.0.0.1:9003", "127.0.0.1:9004"}
	for i, addr := range addrs {
		b.WriteString(replicaEntryYAML(t, i+1, addr, shares[i]))
	}
	b.WriteString("gateway:\n  id: 100\n")
	b.WriteString(`  addr: "127.0.0.1:9100"` + "\n")
	b.WriteString(`  public_key: "` + gwPub + "\"\n")
	b.WriteString(`  private_key: "` + gwPriv + "\"\n")
	b.WriteString(`threshold_public_key_x: "` + pubKey.X.String() + "\"\n")
	b.WriteString(`threshold_public_key_y: "` + pubKey.Y.String() + "\"\n")
	return b.String()
}

func TestLoadTopologySucceeds(t *testing.T) {
	path := writeTopology(t, validTopologyYAML(t))
	top, err := LoadTopology(path)
	require.NoError(t, err)
	require.Equal(t, 4, top.N)
	require.Equal(t, 1, top.F)
	require.Len(t, top.Replicas, 4)

	peers := top.PeerAddrs(1)
	require.Len(t, peers, 4) // 3 other replicas + gateway
	require.NotContains(t, peers, uint32(1))

	keys, err := top.PublicKeys()
	require.NoError(t, err)
	require.Len(t, keys, 5)

	priv, err := top.ReplicaPrivateKey(1)
	require.NoError(t, err)
	require.Len(t, priv, ed25519.PrivateKeySize)

	share, err := top.ReplicaKeyShare(2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), share.Index)

	pub, err := top.ThresholdPublicKey()
	require.NoError(t, err)
	require.NotNil(t, pub.X)
}

func TestLoadTopologyRejectsWrongNFRelationship(t *testing.T) {
	body := strings.Replace(validTopologyYAML(t), "n: 4", "n: 5", 1)
	path := writeTopology(t, body)
	_, err := LoadTopology(path)
	require.Error(t, err)
}

func TestLoadTopologyRejectsMissingFile(t *testing.T) {
	_, err := LoadTopology(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
