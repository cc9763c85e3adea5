package cluster

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	perrors "github.com/protobase/protobase/pkg/errors"
	plog "github.com/protobase/protobase/pkg/log"
	"github.com/protobase/protobase/pkg/metrics"
	"github.com/protobase/protobase/pkg/objectspace"
	"github.com/protobase/protobase/pkg/wal"
	"github.com/rs/zerolog"
)

// Config configures one node's Raft group, mirroring the flags the
// teacher poc took on the command line (-id, -addr, -data).
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	ApplyTimeout time.Duration
}

// NewNodeID generates a random node identity for a caller that has no
// stable identity of its own to use as NodeID (e.g. an ephemeral node
// joining an existing cluster rather than one of its bootstrap voters).
func NewNodeID() string {
	return uuid.NewString()
}

func (c Config) withDefaults() Config {
	if c.NodeID == "" {
		c.NodeID = NewNodeID()
	}
	if c.ApplyTimeout == 0 {
		c.ApplyTimeout = 5 * time.Second
	}
	return c
}

// ClusterFileStorage runs a Raft group over a single ObjectSpace: every
// AdvanceRoot call proposes a transaction's frame to the group and only
// returns once a majority has replicated and applied it, replacing the
// spec's hand-rolled peer-socket broadcast and vote-based exclusion with
// Raft's own log replication and leader election.
type ClusterFileStorage struct {
	cfg   Config
	space *objectspace.ObjectSpace
	raft  *raft.Raft
	fsm   *fsm
	log   zerolog.Logger
	m     *metrics.Registry
}

// Open starts (or rejoins) this node's Raft group backing space. Servers
// is the full voter set this node should bootstrap with when starting a
// brand new cluster; pass nil when joining an already-bootstrapped group
// (the leader must AddVoter this node's address out of band).
func Open(cfg Config, space *objectspace.ObjectSpace, servers []raft.Server) (*ClusterFileStorage, error) {
	cfg = cfg.withDefaults()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, perrors.Wrap(err, "cluster: create data dir")
	}

	logger := plog.WithComponent("cluster").With().Str("node_id", cfg.NodeID).Logger()

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: resolve bind addr")
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, io.Discard)
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: create transport")
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 3, io.Discard)
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: create snapshot store")
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: create log store")
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: create stable store")
	}

	f := newFSM(space)
	r, err := raft.NewRaft(raftConfig, f, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, perrors.Wrap(err, "cluster: create raft instance")
	}

	if len(servers) > 0 {
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, perrors.Wrap(err, "cluster: bootstrap")
		}
	}

	return &ClusterFileStorage{cfg: cfg, space: space, raft: r, fsm: f, log: logger}, nil
}

// WithMetrics attaches a metrics registry this node's cluster coordinator
// publishes Raft leadership/apply metrics to.
func (c *ClusterFileStorage) WithMetrics(m *metrics.Registry) *ClusterFileStorage {
	c.m = m
	return c
}

// IsLeader reports whether this node currently holds Raft leadership for
// its group.
func (c *ClusterFileStorage) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

// LeaderAddr returns the address of this group's current leader, if any
// has been elected.
func (c *ClusterFileStorage) LeaderAddr() string {
	addr, _ := c.raft.LeaderWithID()
	return string(addr)
}

// AddVoter adds a peer to this node's Raft configuration; only the
// current leader can do this meaningfully, mirroring the teacher poc's
// manual "on leader, run AddVoter" join instruction, now made callable.
func (c *ClusterFileStorage) AddVoter(id, addr string) error {
	future := c.raft.AddVoter(raft.ServerID(id), raft.ServerAddress(addr), 0, 0)
	return future.Error()
}

// AdvanceRoot proposes frame to the Raft group and blocks until it has
// replicated to a majority and been applied locally via fsm.Apply. This
// is the spec's majority-vote exclusive root update: a transaction built
// with Transaction.BuildFrame only becomes the object space's current
// root once Raft says so, not the moment this call returns to the
// proposer alone — every voter's fsm.Apply runs the same InstallRoot.
func (c *ClusterFileStorage) AdvanceRoot(frame wal.Frame) error {
	if !c.IsLeader() {
		return &perrors.ConflictError{Name: c.cfg.NodeID, Attempts: 0}
	}

	timer := metrics.NewTimer()
	future := c.raft.Apply(wal.Encode(frame), c.cfg.ApplyTimeout)
	if err := future.Error(); err != nil {
		// A vote loss (or any Raft apply failure) aborts the commit without
		// touching the WAL: the frame was never applied by fsm.Apply, so the
		// object space's current root is untouched.
		return &perrors.ConflictError{Name: c.cfg.NodeID, Attempts: 1}
	}
	if c.m != nil {
		timer.ObserveSeconds(c.m.RaftApplyDuration)
		if c.IsLeader() {
			c.m.RaftIsLeader.Set(1)
		} else {
			c.m.RaftIsLeader.Set(0)
		}
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return perrors.Wrap(err, "cluster: fsm apply")
		}
	}
	c.log.Info().Uint64("txn_id", frame.TxnID).Msg("root advanced by majority vote")
	return nil
}

// Shutdown stops this node's Raft participation. The backing ObjectSpace
// is left open; callers close it separately.
func (c *ClusterFileStorage) Shutdown() error {
	return c.raft.Shutdown().Error()
}
