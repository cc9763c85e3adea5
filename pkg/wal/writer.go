package wal

import (
	"sync"
	"time"

	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/metrics"
)

// Writer appends frames to a block provider, applying the configured sync
// policy the same way the teacher's WALWriter paced fsync against a
// SyncPolicy instead of syncing on every write.
type Writer struct {
	mu       sync.Mutex
	provider blockprovider.BlockProvider
	options  Options
	metrics  *metrics.Registry

	unsyncedBytes int64

	done   chan struct{}
	ticker *time.Ticker
	closed bool
}

func NewWriter(provider blockprovider.BlockProvider, opts Options) *Writer {
	w := &Writer{
		provider: provider,
		options:  opts,
		done:     make(chan struct{}),
	}
	if opts.SyncPolicy == SyncInterval {
		w.ticker = time.NewTicker(opts.SyncIntervalDuration)
		go w.backgroundSync()
	}
	return w
}

// WithMetrics attaches a metrics registry whose WAL counters/histograms
// this writer will publish to. Optional; a nil registry (the default)
// means metric calls are skipped.
func (w *Writer) WithMetrics(m *metrics.Registry) *Writer {
	w.metrics = m
	return w
}

// WriteFrame encodes and appends f, applying the writer's sync policy, and
// returns the location the frame was written at.
func (w *Writer) WriteFrame(f Frame) (blockprovider.Location, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	encoded := Encode(f)
	loc, err := w.provider.Append(encoded)
	if err != nil {
		return loc, err
	}
	w.unsyncedBytes += int64(len(encoded))
	if w.metrics != nil {
		w.metrics.FramesWritten.Inc()
		w.metrics.FrameBytes.Add(float64(len(encoded)))
	}

	switch w.options.SyncPolicy {
	case SyncEveryWrite:
		return loc, w.syncLocked()
	case SyncBatch:
		if w.unsyncedBytes >= w.options.SyncBatchBytes {
			return loc, w.syncLocked()
		}
	}
	return loc, nil
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	timer := metrics.NewTimer()
	if err := w.provider.Sync(); err != nil {
		return err
	}
	if w.metrics != nil {
		timer.ObserveSeconds(w.metrics.FsyncDuration)
	}
	w.unsyncedBytes = 0
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.ticker != nil {
		w.ticker.Stop()
		close(w.done)
	}
	return w.syncLocked()
}

func (w *Writer) backgroundSync() {
	for {
		select {
		case <-w.ticker.C:
			w.Sync()
		case <-w.done:
			return
		}
	}
}
