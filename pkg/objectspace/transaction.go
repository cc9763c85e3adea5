package objectspace

import (
	"strings"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/collections"
	perrors "github.com/protobase/protobase/pkg/errors"
	"github.com/protobase/protobase/pkg/wal"
)

// RootObjectKind tells Commit's retry loop how to reconcile a root binding
// against a concurrent writer's change to the same name, since the atom
// tags alone can't distinguish a RepeatedKeysDictionary's index root from a
// plain Dictionary's or Set's — all three flatten to the same HAMT tags.
type RootObjectKind int

const (
	// KindDefault covers scalars, documents, List, Dictionary, Set and
	// HashDictionary: Commit's rebase is "re-apply this transaction's
	// local change on top of the new base", the glossary's definition of
	// rebase with no type-specific merge.
	KindDefault RootObjectKind = iota
	// KindRepeatedKeysDictionary asks Commit to run collections.Rebase's
	// three-way, remove-wins merge instead of overwriting the concurrent
	// writer's change outright.
	KindRepeatedKeysDictionary
)

// Transaction is a snapshot-isolated unit of work: reads see the root as
// of NewTransaction, writes stage new atoms and root bindings locally,
// and nothing is durable or visible to other transactions until Commit
// succeeds.
type Transaction struct {
	space        *ObjectSpace
	snapshotRoot atom.ID

	sets    map[string]atom.ID // name -> new binding, staged by this tx
	kinds   map[string]RootObjectKind
	pending map[atom.ID]atom.Atom
}

// PutAtom stages a newly built atom for inclusion in this transaction's
// commit frame. Collection mutations (List.Append, Dictionary.Put, ...)
// happen entirely in memory; the caller is responsible for turning the
// resulting in-memory nodes into atoms and staging every one reachable
// from a root binding before calling SetRootObject.
func (tx *Transaction) PutAtom(a atom.Atom) {
	tx.pending[a.ID] = a
}

// GetRootObject resolves name against this transaction's view: its own
// uncommitted writes first, falling back to the snapshot root.
func (tx *Transaction) GetRootObject(name string) (atom.ID, bool, error) {
	if id, ok := tx.sets[name]; ok {
		return id, true, nil
	}
	rm, err := tx.space.rootMapAt(tx.snapshotRoot)
	if err != nil {
		return atom.Nil, false, err
	}
	id, ok := rm.Get(name)
	return id, ok, nil
}

// SetRootObject stages name -> id as part of this transaction's commit.
// id's atom, and everything it transitively references, must already
// have been staged with PutAtom or already be durable. A concurrent
// conflict on name is resolved by re-applying this binding verbatim onto
// the newer root (KindDefault); use SetRepeatedKeysDictionary when name
// holds a RepeatedKeysDictionary so a conflict three-way merges instead.
func (tx *Transaction) SetRootObject(name string, id atom.ID) {
	tx.sets[name] = id
	delete(tx.kinds, name)
}

// PutCollection stages every atom a persistent collection's ToAtoms
// flattened it into and binds name to its root, in one call — the path
// cmd/protobasectl and any other caller should use to commit a
// List/HashDictionary/Dictionary/Set/Vector instead of hand-rolling the
// PutAtom loop + SetRootObject pair.
func (tx *Transaction) PutCollection(name string, atoms []atom.Atom, rootID atom.ID) {
	for _, a := range atoms {
		tx.PutAtom(a)
	}
	tx.SetRootObject(name, rootID)
}

// SetRepeatedKeysDictionary is PutCollection for a RepeatedKeysDictionary
// root, additionally marking name so Commit's retry loop runs
// collections.Rebase's three-way merge against a concurrent writer's
// change instead of overwriting it, per spec §4.4 step 3.
func (tx *Transaction) SetRepeatedKeysDictionary(name string, d *collections.RepeatedKeysDictionary) {
	atoms, rootID := d.ToAtoms()
	for _, a := range atoms {
		tx.PutAtom(a)
	}
	tx.sets[name] = rootID
	if tx.kinds == nil {
		tx.kinds = map[string]RootObjectKind{}
	}
	tx.kinds[name] = KindRepeatedKeysDictionary
}

// Release unpins this transaction's snapshot root, letting Compact reclaim
// atoms only it was still holding reachable. Safe to call after Commit;
// required for a read-only transaction that never commits, so long-lived
// readers don't block garbage collection forever.
func (tx *Transaction) Release() {
	tx.space.txns.unregister(tx)
}

// Commit attempts to fast-path onto the object space's current root; if
// a concurrent transaction advanced it first, Commit rebases its own
// bindings onto the new root and retries, up to MaxRebaseAttempts times,
// surfacing ConflictError if the root keeps moving out from under it.
func (tx *Transaction) Commit() error {
	if len(tx.sets) == 0 {
		tx.space.txns.unregister(tx)
		return nil
	}

	maxAttempts := tx.space.MaxRebaseAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRebaseAttempts
	}

	snapshotRM, err := tx.space.rootMapAt(tx.snapshotRoot)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx.space.commitMu.Lock()
		base := tx.space.currentRoot
		tx.space.commitMu.Unlock()

		rm, err := tx.space.rootMapAt(base)
		if err != nil {
			return err
		}

		atoms := make([]atom.Atom, 0, len(tx.pending))
		for _, a := range tx.pending {
			atoms = append(atoms, a)
		}

		for name, id := range tx.sets {
			concurrentID, _ := rm.Get(name)
			baselineID, _ := snapshotRM.Get(name)
			if concurrentID == baselineID || tx.kinds[name] != KindRepeatedKeysDictionary {
				rm = rm.Set(name, id)
				continue
			}
			mergedID, mergedAtoms, err := tx.rebaseRepeatedKeysDictionary(name, baselineID, id, concurrentID)
			if err != nil {
				tx.space.txns.unregister(tx)
				if m := tx.space.Metrics; m != nil {
					m.Conflicts.Inc()
				}
				return err
			}
			atoms = append(atoms, mergedAtoms...)
			rm = rm.Set(name, mergedID)
			tx.space.log.Info().Str("name", name).Int("attempt", attempt+1).
				Msg("commit rebased repeated-keys dictionary against concurrent write")
		}
		newRootAtom := rm.Encode()
		atoms = append(atoms, newRootAtom)

		tx.space.commitMu.Lock()
		if tx.space.currentRoot != base {
			tx.space.commitMu.Unlock()
			continue // root moved since we read it; rebase and retry
		}

		txnID := tx.space.nextTxnID
		tx.space.nextTxnID++

		frame := wal.Frame{TxnID: txnID, Atoms: atoms, NewRoot: newRootAtom.ID}
		if _, err := tx.space.writer.WriteFrame(frame); err != nil {
			tx.space.commitMu.Unlock()
			return err
		}

		tx.space.currentRoot = newRootAtom.ID
		tx.space.commitMu.Unlock()

		tx.space.putAtoms(atoms)
		tx.space.txns.unregister(tx)
		if m := tx.space.Metrics; m != nil {
			m.RebaseAttempts.Observe(float64(attempt + 1))
		}
		if attempt > 0 {
			tx.space.log.Info().Int("attempt", attempt+1).Uint64("txn_id", txnID).
				Strs("names", tx.names()).Msg("commit rebased onto newer root")
		}
		return nil
	}

	tx.space.txns.unregister(tx)
	if m := tx.space.Metrics; m != nil {
		m.Conflicts.Inc()
	}
	names := tx.names()
	tx.space.log.Warn().Strs("names", names).Int("attempts", maxAttempts).Msg("commit exhausted rebase budget")
	return &perrors.ConflictError{Name: strings.Join(names, ","), Attempts: maxAttempts}
}

// resolver resolves an atom id against this transaction's own staged-but-
// not-yet-durable atoms first, falling back to the object space's cache, so
// rebaseRepeatedKeysDictionary can decode a collection this transaction
// just built without having committed it yet.
func (tx *Transaction) resolver() collections.Resolver {
	return func(id atom.ID) (atom.Atom, bool) {
		if a, ok := tx.pending[id]; ok {
			return a, true
		}
		return tx.space.getAtom(id)
	}
}

// rebaseRepeatedKeysDictionary decodes base/local/remote by id and runs
// collections.Rebase's three-way, remove-wins merge, per spec §4.4 step 3:
// a conflicting RepeatedKeysDictionary commit is reconciled against the
// concurrent writer's change instead of overwriting it outright.
func (tx *Transaction) rebaseRepeatedKeysDictionary(name string, baseID, localID, remoteID atom.ID) (atom.ID, []atom.Atom, error) {
	resolve := tx.resolver()

	base, err := collections.FromRepeatedKeysDictionary(baseID, resolve)
	if err != nil {
		return atom.Nil, nil, perrors.Wrapf(err, "rebase %q: decode base", name)
	}
	local, err := collections.FromRepeatedKeysDictionary(localID, resolve)
	if err != nil {
		return atom.Nil, nil, perrors.Wrapf(err, "rebase %q: decode local", name)
	}
	remote, err := collections.FromRepeatedKeysDictionary(remoteID, resolve)
	if err != nil {
		return atom.Nil, nil, perrors.Wrapf(err, "rebase %q: decode remote", name)
	}

	merged := collections.Rebase(base, local, remote)
	atoms, mergedID := merged.ToAtoms()
	return mergedID, atoms, nil
}

func (tx *Transaction) names() []string {
	names := make([]string, 0, len(tx.sets))
	for n := range tx.sets {
		names = append(names, n)
	}
	return names
}

// BuildFrame computes the WAL frame this transaction would commit against
// the object space's current root, without writing or installing it. It
// exists for ClusterFileStorage (see pkg/cluster): a clustered object
// space proposes this frame through Raft instead of calling Commit, since
// Raft's log order is the serialization point in that mode, not the local
// commitMu CAS loop.
func (tx *Transaction) BuildFrame() (wal.Frame, error) {
	tx.space.commitMu.Lock()
	base := tx.space.currentRoot
	txnID := tx.space.nextTxnID
	tx.space.commitMu.Unlock()

	rm, err := tx.space.rootMapAt(base)
	if err != nil {
		return wal.Frame{}, err
	}
	for name, id := range tx.sets {
		rm = rm.Set(name, id)
	}
	newRootAtom := rm.Encode()

	pendingAtoms := make([]atom.Atom, 0, len(tx.pending))
	for _, a := range tx.pending {
		pendingAtoms = append(pendingAtoms, a)
	}
	atoms := append(pendingAtoms, newRootAtom)

	return wal.Frame{TxnID: txnID, Atoms: atoms, NewRoot: newRootAtom.ID}, nil
}
