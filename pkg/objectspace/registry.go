package objectspace

import (
	"sync"

	"github.com/protobase/protobase/pkg/atom"
)

// txnRegistry tracks every open Transaction's snapshot root so Compact
// knows which roots besides the current one are still reachable to a
// reader, the same role the teacher's TransactionRegistry played tracking
// each active Transaction's SnapshotLSN to bound Vacuum, generalized from
// an LSN watermark to a set of pinned content-addressed roots (snapshot
// roots aren't totally ordered the way LSNs are, so no single watermark
// suffices here).
type txnRegistry struct {
	mu     sync.Mutex
	active map[*Transaction]atom.ID
}

func newTxnRegistry() *txnRegistry {
	return &txnRegistry{active: make(map[*Transaction]atom.ID)}
}

func (r *txnRegistry) register(tx *Transaction, root atom.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[tx] = root
}

func (r *txnRegistry) unregister(tx *Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, tx)
}

// pinnedRoots returns every snapshot root an open transaction still reads
// through.
func (r *txnRegistry) pinnedRoots() []atom.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	roots := make([]atom.ID, 0, len(r.active))
	for _, root := range r.active {
		roots = append(roots, root)
	}
	return roots
}
