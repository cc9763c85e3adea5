// Package objectspace ties the block provider, the write-ahead log and the
// root map together into the transactional surface ProtoBase embeds:
// snapshot-isolated reads against an immutable root, and commits that
// either fast-path onto the current root or rebase against a newer one a
// concurrent writer already installed.
package objectspace

import (
	"sync"
	"time"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/collections"
	perrors "github.com/protobase/protobase/pkg/errors"
	plog "github.com/protobase/protobase/pkg/log"
	"github.com/protobase/protobase/pkg/metrics"
	"github.com/protobase/protobase/pkg/wal"
	"github.com/rs/zerolog"
)

// DefaultMaxRebaseAttempts bounds the retry loop Transaction.Commit runs
// against a moving root before giving up with ConflictError.
const DefaultMaxRebaseAttempts = 8

// ObjectSpace is a single embedded database: one block provider, one WAL,
// one current root, and an in-memory cache of every atom reachable from
// it. Commits serialize through commitMu, mirroring the teacher's
// StorageEngine holding one LSNTracker and one TransactionRegistry per
// engine instance rather than per table.
type ObjectSpace struct {
	provider blockprovider.BlockProvider
	writer   *wal.Writer

	commitMu    sync.Mutex
	currentRoot atom.ID
	nextTxnID   uint64

	cacheMu sync.RWMutex
	cache   map[atom.ID]atom.Atom

	txns *txnRegistry

	MaxRebaseAttempts int
	Metrics           *metrics.Registry
	log               zerolog.Logger
}

// Open recovers an ObjectSpace from whatever frames the provider's WAL
// already holds, replaying them in order the same way the teacher's
// engine replayed its WAL into the B+Tree on startup, then opens a
// writer for new commits.
func Open(provider blockprovider.BlockProvider, opts wal.Options) (*ObjectSpace, error) {
	os := &ObjectSpace{
		provider:          provider,
		cache:             make(map[atom.ID]atom.Atom),
		txns:              newTxnRegistry(),
		MaxRebaseAttempts: DefaultMaxRebaseAttempts,
		log:               plog.WithComponent("objectspace"),
	}

	start := time.Now()
	reader := wal.NewReader(provider)
	frames, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	for _, f := range frames {
		for _, a := range f.Atoms {
			os.cache[a.ID] = a
		}
		if !f.NewRoot.IsNil() || len(f.Atoms) > 0 {
			os.currentRoot = f.NewRoot
		}
		if f.TxnID >= os.nextTxnID {
			os.nextTxnID = f.TxnID + 1
		}
	}
	os.log.Info().Int("frames", len(frames)).Dur("elapsed", time.Since(start)).Msg("recovery replayed WAL")

	os.writer = wal.NewWriter(provider, opts)
	return os, nil
}

// WithMetrics attaches a metrics registry this object space's writer and
// commit path publish counters/histograms to.
func (os *ObjectSpace) WithMetrics(m *metrics.Registry) *ObjectSpace {
	os.Metrics = m
	os.writer.WithMetrics(m)
	return os
}

// getAtom resolves an atom id against the in-memory cache; every atom an
// ObjectSpace ever committed lives here until Compact (see gc.go) reclaims
// whatever is unreachable from the current root and every pinned snapshot.
func (os *ObjectSpace) getAtom(id atom.ID) (atom.Atom, bool) {
	if id.IsNil() {
		return atom.Atom{}, false
	}
	os.cacheMu.RLock()
	defer os.cacheMu.RUnlock()
	a, ok := os.cache[id]
	return a, ok
}

func (os *ObjectSpace) putAtoms(atoms []atom.Atom) {
	os.cacheMu.Lock()
	defer os.cacheMu.Unlock()
	for _, a := range atoms {
		os.cache[a.ID] = a
	}
}

func (os *ObjectSpace) rootMapAt(root atom.ID) (*RootMap, error) {
	if root.IsNil() {
		return NewRootMap(), nil
	}
	a, ok := os.getAtom(root)
	if !ok {
		return nil, &perrors.CorruptAtom{Reason: "root map atom missing from cache"}
	}
	return DecodeRootMap(a)
}

// NewTransaction starts a snapshot-isolated transaction pinned to the
// object space's root as of this call.
func (os *ObjectSpace) NewTransaction() *Transaction {
	os.commitMu.Lock()
	snapshot := os.currentRoot
	os.commitMu.Unlock()

	tx := &Transaction{
		space:        os,
		snapshotRoot: snapshot,
		sets:         map[string]atom.ID{},
		kinds:        map[string]RootObjectKind{},
		pending:      map[atom.ID]atom.Atom{},
	}
	os.txns.register(tx, snapshot)
	return tx
}

// GetDatabase returns the root map binding currently visible to external
// callers, i.e. the object space's committed state rather than any
// in-flight transaction's snapshot.
func (os *ObjectSpace) GetDatabase(name string) (atom.ID, bool, error) {
	os.commitMu.Lock()
	root := os.currentRoot
	os.commitMu.Unlock()

	rm, err := os.rootMapAt(root)
	if err != nil {
		return atom.Nil, false, err
	}
	id, ok := rm.Get(name)
	return id, ok, nil
}

// GetAtom resolves an arbitrary atom id against the space's cache, for
// callers (e.g. protobasectl) that hold an id obtained from GetDatabase or
// a collection walk and need the underlying atom.
func (os *ObjectSpace) GetAtom(id atom.ID) (atom.Atom, bool) {
	return os.getAtom(id)
}

// CollectionResolver returns a collections.Resolver backed by this space's
// atom cache, for collections.FromList/FromHashDictionary/FromDictionary/
// FromSet/FromRepeatedKeysDictionary/FromVector to walk a persistent
// collection's refs once GetDatabase has resolved its root id.
func (os *ObjectSpace) CollectionResolver() collections.Resolver {
	return os.GetAtom
}

// ListDatabases returns every root name currently bound, for CLI/debug
// tooling that wants to enumerate what a space holds without knowing names
// up front.
func (os *ObjectSpace) ListDatabases() ([]string, error) {
	os.commitMu.Lock()
	root := os.currentRoot
	os.commitMu.Unlock()

	rm, err := os.rootMapAt(root)
	if err != nil {
		return nil, err
	}
	return rm.Names(), nil
}

// walArchiver is implemented by block providers that can compress WAL files
// a checkpoint no longer needs uncompressed, e.g. blockprovider.File.
type walArchiver interface {
	ArchiveInactive() (int, error)
}

// Checkpoint forces every buffered frame durably to the block provider,
// reclaims atoms no longer reachable from the current root or any pinned
// transaction snapshot, mirroring the teacher's explicit Vacuum entry point,
// and archives any rotated-out WAL file the provider supports archiving.
func (os *ObjectSpace) Checkpoint() (freed int, err error) {
	if err := os.writer.Sync(); err != nil {
		return 0, err
	}
	freed = os.Compact()
	if archiver, ok := os.provider.(walArchiver); ok {
		if _, err := archiver.ArchiveInactive(); err != nil {
			return freed, err
		}
	}
	return freed, nil
}

// InstallRoot durably writes atoms and advances the current root to
// newRoot, without the local CAS/rebase loop Transaction.Commit runs.
// It is for callers where something else already totally ordered the
// write — a Raft log, in pkg/cluster's fsm.Apply — so there is no
// concurrent writer to race against here.
func (os *ObjectSpace) InstallRoot(txnID uint64, atoms []atom.Atom, newRoot atom.ID) error {
	os.commitMu.Lock()
	defer os.commitMu.Unlock()

	frame := wal.Frame{TxnID: txnID, Atoms: atoms, NewRoot: newRoot}
	if _, err := os.writer.WriteFrame(frame); err != nil {
		return err
	}
	os.currentRoot = newRoot
	if txnID >= os.nextTxnID {
		os.nextTxnID = txnID + 1
	}
	os.putAtoms(atoms)
	return nil
}

func (os *ObjectSpace) Close() error {
	if err := os.writer.Close(); err != nil {
		return err
	}
	return os.provider.Close()
}
