// Package metrics exposes the counters and histograms every storage
// subsystem publishes: the WAL writer, the object space commit path and
// the cluster coordinator. Everything lives on its own prometheus.Registry
// rather than the global default, so an embedding host decides if and
// where to mount it, the way cuemby-warren's pkg/metrics publishes a
// package-level registry but leaves wiring the HTTP handler to main.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "protobase"

// Registry bundles every metric this module publishes behind one
// prometheus.Registry an embedding host can mount under /metrics, or
// ignore entirely.
type Registry struct {
	reg *prometheus.Registry

	FramesWritten   prometheus.Counter
	FrameBytes      prometheus.Counter
	FsyncDuration   prometheus.Histogram
	RecoveryFrames  prometheus.Counter
	RecoverySeconds prometheus.Histogram
	RebaseAttempts  prometheus.Histogram
	Conflicts       prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter

	RaftApplyDuration prometheus.Histogram
	RaftIsLeader      prometheus.Gauge
	RaftCommitIndex   prometheus.Gauge
}

// New creates a Registry with every metric registered under the
// protobase_ namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		FramesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wal_frames_written_total",
			Help: "Total number of WAL frames appended to the active block provider.",
		}),
		FrameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "wal_frame_bytes_total",
			Help: "Total number of encoded frame bytes appended.",
		}),
		FsyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "wal_fsync_duration_seconds",
			Help: "Latency of a WAL sync call.", Buckets: prometheus.DefBuckets,
		}),
		RecoveryFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recovery_frames_replayed_total",
			Help: "Total number of frames replayed during ObjectSpace.Open recovery.",
		}),
		RecoverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "recovery_duration_seconds",
			Help: "Wall time spent replaying the WAL on ObjectSpace.Open.", Buckets: prometheus.DefBuckets,
		}),
		RebaseAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "commit_rebase_attempts",
			Help:    "Number of rebase attempts a transaction needed before committing or giving up.",
			Buckets: prometheus.LinearBuckets(1, 1, 8),
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "commit_conflicts_total",
			Help: "Total number of commits that exhausted the rebase budget and returned ConflictError.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "page_cache_hits_total",
			Help: "Total number of block provider reads served from a cache tier.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "page_cache_misses_total",
			Help: "Total number of block provider reads that fell through to the object store.",
		}),
		RaftApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "raft_apply_duration_seconds",
			Help: "Time taken for ClusterFileStorage.AdvanceRoot to replicate to a majority.", Buckets: prometheus.DefBuckets,
		}),
		RaftIsLeader: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "raft_is_leader",
			Help: "Whether this node is the Raft leader for its cluster group (1) or not (0).",
		}),
		RaftCommitIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "raft_commit_index",
			Help: "Last Raft log index committed by this node's cluster group.",
		}),
	}

	reg.MustRegister(
		r.FramesWritten, r.FrameBytes, r.FsyncDuration,
		r.RecoveryFrames, r.RecoverySeconds,
		r.RebaseAttempts, r.Conflicts,
		r.CacheHits, r.CacheMisses,
		r.RaftApplyDuration, r.RaftIsLeader, r.RaftCommitIndex,
	)
	return r
}

// Gatherer exposes the underlying registry so a host can mount
// promhttp.HandlerFor(reg.Gatherer(), ...) itself.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Timer measures an operation's duration for later observation against a
// histogram, the same pattern as cuemby-warren's metrics.Timer.
type Timer struct{ start time.Time }

func NewTimer() Timer { return Timer{start: time.Now()} }

func (t Timer) ObserveSeconds(h prometheus.Histogram) {
	h.Observe(time.Since(t.start).Seconds())
}
