package cluster

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/objectspace"
	"github.com/protobase/protobase/pkg/wal"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func openNode(t *testing.T, id string) (*ClusterFileStorage, *objectspace.ObjectSpace) {
	t.Helper()
	dir := t.TempDir()

	provider, err := blockprovider.NewFile(dir+"/wal", blockprovider.DefaultFileOptions())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	space, err := objectspace.Open(provider, wal.DefaultOptions())
	if err != nil {
		t.Fatalf("objectspace.Open: %v", err)
	}
	t.Cleanup(func() { space.Close() })

	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	cfg := Config{NodeID: id, BindAddr: addr, DataDir: dir + "/raft", ApplyTimeout: 2 * time.Second}
	cs, err := Open(cfg, space, []raft.Server{{ID: raft.ServerID(id), Address: raft.ServerAddress(addr)}})
	if err != nil {
		t.Fatalf("cluster.Open: %v", err)
	}
	t.Cleanup(func() { cs.Shutdown() })
	return cs, space
}

func waitForLeader(t *testing.T, cs *ClusterFileStorage) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cs.IsLeader() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("single-node cluster never elected itself leader")
}

func TestAdvanceRootAppliesLocallyOnSingleNodeCluster(t *testing.T) {
	cs, space := openNode(t, "node1")
	waitForLeader(t, cs)

	tx := space.NewTransaction()
	a := atom.New(atom.TagI64, []byte{5, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx.PutAtom(a)
	tx.SetRootObject("counter", a.ID)
	frame, err := tx.BuildFrame()
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}

	if err := cs.AdvanceRoot(frame); err != nil {
		t.Fatalf("AdvanceRoot: %v", err)
	}
	tx.Release()

	id, ok, err := space.GetDatabase("counter")
	if err != nil {
		t.Fatalf("GetDatabase: %v", err)
	}
	if !ok || id != a.ID {
		t.Fatalf("GetDatabase(counter) = %v, %v; want %v, true", id, ok, a.ID)
	}
}
