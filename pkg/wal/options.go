package wal

import "time"

// SyncPolicy controls when a Writer calls Sync on its block provider.
type SyncPolicy int

const (
	// SyncEveryWrite syncs after every frame. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval syncs periodically from a background goroutine.
	SyncInterval

	// SyncBatch syncs once accumulated unsynced bytes cross SyncBatchBytes.
	SyncBatch
)

// Options configures a Writer.
type Options struct {
	SyncPolicy SyncPolicy

	// SyncIntervalDuration is used when SyncPolicy is SyncInterval.
	SyncIntervalDuration time.Duration

	// SyncBatchBytes is used when SyncPolicy is SyncBatch.
	SyncBatchBytes int64
}

func DefaultOptions() Options {
	return Options{
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
	}
}
