// Package blockprovider implements the pluggable page I/O layer every
// storage variant in ProtoBase is built on: a directory of append-only WAL
// files for File, an in-memory append-only buffer for Memory, and an LRU-cached
// object-store-backed variant for Cloud. All three share one interface so
// the WAL and object space never know which is underneath, the same way
// the teacher's HeapManager hides segment rotation behind Write/Read.
package blockprovider

import "io"

// ByteSource is a read handle into a WAL file at a fixed starting
// position; it behaves like a bounded io.Reader plus io.Closer.
type ByteSource interface {
	io.Reader
	io.Closer
}

// Location is an atom or frame's physical address, per §3 of the spec.
type Location struct {
	WALID  uint64
	Offset int64
	Length int64
}

// BlockProvider is the contract every storage variant implements.
type BlockProvider interface {
	// GetReader opens a ByteSource positioned at `position` within the WAL
	// file identified by walID.
	GetReader(walID uint64, position int64) (ByteSource, error)

	// Append writes bytes to the current (or a freshly rotated) WAL file
	// and returns where they landed.
	Append(data []byte) (Location, error)

	// Sync forces durability of everything appended so far.
	Sync() error

	// ListWALs returns every known WAL id, ascending.
	ListWALs() ([]uint64, error)

	// PageSize is the fixed page size this provider was opened with; it
	// cannot change after the first write (§6 configuration options).
	PageSize() int

	Close() error
}
