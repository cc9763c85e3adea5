package objectspace

import (
	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// Compact reclaims cache entries unreachable from the current root or any
// still-open transaction's pinned snapshot, the same reachability-bounded
// reclamation the teacher's Vacuum performed against TransactionRegistry's
// MinActiveLSN watermark, generalized here from "older than the oldest
// visible LSN" to "not reachable from any pinned root" since roots aren't
// linearly ordered the way LSNs are. Returns the number of atoms freed.
func (os *ObjectSpace) Compact() int {
	os.commitMu.Lock()
	current := os.currentRoot
	os.commitMu.Unlock()

	roots := append(os.txns.pinnedRoots(), current)

	os.cacheMu.Lock()
	defer os.cacheMu.Unlock()

	if !current.IsNil() {
		if _, ok := os.cache[current]; !ok {
			err := &perrors.InvariantViolated{Detail: "current root atom missing from cache during compact"}
			perrors.Report(err)
			os.log.Error().Err(err).Msg("invariant violated")
			panic(err)
		}
	}

	reachable := make(map[atom.ID]bool, len(os.cache))
	var walk func(id atom.ID)
	walk = func(id atom.ID) {
		if id.IsNil() || reachable[id] {
			return
		}
		a, ok := os.cache[id]
		if !ok {
			return
		}
		reachable[id] = true
		for _, ref := range a.Refs {
			walk(ref)
		}
	}
	for _, root := range roots {
		walk(root)
	}

	freed := 0
	for id := range os.cache {
		if !reachable[id] {
			delete(os.cache, id)
			freed++
		}
	}
	os.log.Info().Int("freed", freed).Int("live", len(reachable)).Msg("compact reclaimed unreachable atoms")
	return freed
}
