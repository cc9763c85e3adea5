package objectspace

import (
	"testing"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/blockprovider"
	"github.com/protobase/protobase/pkg/collections"
	"github.com/protobase/protobase/pkg/wal"
)

func openTestSpace(t *testing.T) *ObjectSpace {
	t.Helper()
	provider := blockprovider.NewMemory()
	space, err := Open(provider, wal.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { space.Close() })
	return space
}

func TestCommitThenReadBack(t *testing.T) {
	space := openTestSpace(t)

	tx := space.NewTransaction()
	a := atom.New(atom.TagI64, []byte{7, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx.PutAtom(a)
	tx.SetRootObject("counter", a.ID)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	id, ok, err := space.GetDatabase("counter")
	if err != nil {
		t.Fatalf("GetDatabase: %v", err)
	}
	if !ok || id != a.ID {
		t.Fatalf("GetDatabase(counter) = %v, %v; want %v, true", id, ok, a.ID)
	}
}

func TestSnapshotIsolationDoesNotSeeLaterCommits(t *testing.T) {
	space := openTestSpace(t)

	tx1 := space.NewTransaction()
	first := atom.New(atom.TagI64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx1.PutAtom(first)
	tx1.SetRootObject("x", first.ID)
	if err := tx1.Commit(); err != nil {
		t.Fatalf("Commit 1: %v", err)
	}

	// Snapshot taken after first commit, before second.
	reader := space.NewTransaction()

	tx2 := space.NewTransaction()
	second := atom.New(atom.TagI64, []byte{2, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx2.PutAtom(second)
	tx2.SetRootObject("x", second.ID)
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	id, ok, err := reader.GetRootObject("x")
	if err != nil {
		t.Fatalf("GetRootObject: %v", err)
	}
	if !ok || id != first.ID {
		t.Fatalf("snapshot read saw %v, want the pre-snapshot binding %v", id, first.ID)
	}

	idNow, _, _ := space.GetDatabase("x")
	if idNow != second.ID {
		t.Fatalf("current database state = %v, want %v", idNow, second.ID)
	}
}

func TestConcurrentCommitsToDifferentNamesBothSucceed(t *testing.T) {
	space := openTestSpace(t)

	txA := space.NewTransaction()
	txB := space.NewTransaction()

	aAtom := atom.New(atom.TagI64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil)
	bAtom := atom.New(atom.TagI64, []byte{2, 0, 0, 0, 0, 0, 0, 0}, nil)

	txA.PutAtom(aAtom)
	txA.SetRootObject("a", aAtom.ID)

	txB.PutAtom(bAtom)
	txB.SetRootObject("b", bAtom.ID)

	if err := txA.Commit(); err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	if err := txB.Commit(); err != nil {
		t.Fatalf("Commit B (rebased onto A's new root): %v", err)
	}

	idA, ok, _ := space.GetDatabase("a")
	if !ok || idA != aAtom.ID {
		t.Fatalf("binding a lost after rebase")
	}
	idB, ok, _ := space.GetDatabase("b")
	if !ok || idB != bAtom.ID {
		t.Fatalf("binding b missing after rebase")
	}
}

// TestConcurrentCommitsToSameRepeatedKeysDictionaryMergeBothAdds mirrors the
// two-writer-same-key scenario spec §4.4 step 3 calls out: txA and txB both
// start from an empty "tags" binding and each add a different value under
// the same key. Without the rebase dispatch in Commit's retry loop, txB
// would either lose to a blind overwrite or fail outright; with it, both
// additions survive via collections.Rebase's union-of-adds merge.
func TestConcurrentCommitsToSameRepeatedKeysDictionaryMergeBothAdds(t *testing.T) {
	space := openTestSpace(t)

	txA := space.NewTransaction()
	txB := space.NewTransaction()

	dA := collections.NewRepeatedKeysDictionary().Add("doc-1", atom.FromString("urgent"))
	dB := collections.NewRepeatedKeysDictionary().Add("doc-1", atom.FromString("reviewed"))

	txA.SetRepeatedKeysDictionary("tags", dA)
	txB.SetRepeatedKeysDictionary("tags", dB)

	if err := txA.Commit(); err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	if err := txB.Commit(); err != nil {
		t.Fatalf("Commit B (should rebase against A via collections.Rebase): %v", err)
	}

	rootID, ok, err := space.GetDatabase("tags")
	if err != nil {
		t.Fatalf("GetDatabase: %v", err)
	}
	if !ok {
		t.Fatal("tags binding missing after merge")
	}

	merged, err := collections.FromRepeatedKeysDictionary(rootID, space.CollectionResolver())
	if err != nil {
		t.Fatalf("FromRepeatedKeysDictionary: %v", err)
	}
	values := merged.Get("doc-1")
	if !values.Contains(atom.FromString("urgent")) {
		t.Fatal("merge dropped txA's concurrent addition")
	}
	if !values.Contains(atom.FromString("reviewed")) {
		t.Fatal("merge dropped txB's concurrent addition")
	}
	if values.Len() != 2 {
		t.Fatalf("merged set has %d values, want 2", values.Len())
	}
}

func TestRecoveryReplaysCommittedFrames(t *testing.T) {
	dir := t.TempDir()
	provider, err := blockprovider.NewFile(dir, blockprovider.DefaultFileOptions())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	space, err := Open(provider, wal.DefaultOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tx := space.NewTransaction()
	a := atom.New(atom.TagI64, []byte{9, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx.PutAtom(a)
	tx.SetRootObject("persisted", a.ID)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := space.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	provider2, err := blockprovider.NewFile(dir, blockprovider.DefaultFileOptions())
	if err != nil {
		t.Fatalf("reopen NewFile: %v", err)
	}
	space2, err := Open(provider2, wal.DefaultOptions())
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	defer space2.Close()

	id, ok, err := space2.GetDatabase("persisted")
	if err != nil {
		t.Fatalf("GetDatabase after recovery: %v", err)
	}
	if !ok || id != a.ID {
		t.Fatalf("recovery lost binding: got %v, %v", id, ok)
	}
}

func TestCompactReclaimsSupersededAtomsOnceUnpinned(t *testing.T) {
	space := openTestSpace(t)

	tx1 := space.NewTransaction()
	first := atom.New(atom.TagI64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx1.PutAtom(first)
	tx1.SetRootObject("x", first.ID)
	if err := tx1.Commit(); err != nil {
		t.Fatalf("Commit 1: %v", err)
	}

	reader := space.NewTransaction() // pins the root that still points at first.ID

	tx2 := space.NewTransaction()
	second := atom.New(atom.TagI64, []byte{2, 0, 0, 0, 0, 0, 0, 0}, nil)
	tx2.PutAtom(second)
	tx2.SetRootObject("x", second.ID)
	if err := tx2.Commit(); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	space.Compact()
	if _, ok := space.getAtom(first.ID); !ok {
		t.Fatal("Compact reclaimed an atom still reachable from an open reader's snapshot")
	}

	reader.Release()
	space.Compact()
	if _, ok := space.getAtom(first.ID); ok {
		t.Fatal("Compact left behind an atom unreachable from any pinned root")
	}
	if _, ok := space.getAtom(second.ID); !ok {
		t.Fatal("Compact reclaimed an atom reachable from the current root")
	}
}
