package collections

import (
	"fmt"
	"testing"

	"github.com/protobase/protobase/pkg/atom"
)

func TestHashDictionaryPutGetDelete(t *testing.T) {
	d := NewHashDictionary()
	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		d = d.Put(key, atom.FromI64(int64(i)))
	}
	if d.Len() != 500 {
		t.Fatalf("Len() = %d, want 500", d.Len())
	}
	for i := 0; i < 500; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		v, ok := d.Get(key)
		if !ok {
			t.Fatalf("missing key-%d", i)
		}
		if v.I64 != int64(i) {
			t.Errorf("key-%d = %d, want %d", i, v.I64, i)
		}
	}

	d2, ok := d.Delete([]byte("key-250"))
	if !ok {
		t.Fatal("Delete reported missing key")
	}
	if _, ok := d2.Get([]byte("key-250")); ok {
		t.Fatal("key-250 still present after delete")
	}
	if _, ok := d.Get([]byte("key-250")); !ok {
		t.Fatal("original dictionary mutated by Delete")
	}
}

func TestDictionaryNFCNormalizesKeys(t *testing.T) {
	d := NewDictionary()
	composed := "café"   // é as a single code point
	decomposed := "café" // e + combining acute accent

	d = d.Put(composed, atom.FromI64(1))
	v, ok := d.Get(decomposed)
	if !ok {
		t.Fatal("expected decomposed form to find value stored under composed form")
	}
	if v.I64 != 1 {
		t.Errorf("got %d, want 1", v.I64)
	}
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet(atom.FromI64(1), atom.FromI64(2), atom.FromI64(3))
	b := NewSet(atom.FromI64(2), atom.FromI64(3), atom.FromI64(4))

	u := Union(a, b)
	if u.Len() != 4 {
		t.Errorf("Union len = %d, want 4", u.Len())
	}

	i := Intersection(a, b)
	if i.Len() != 2 || !i.Contains(atom.FromI64(2)) || !i.Contains(atom.FromI64(3)) {
		t.Errorf("Intersection incorrect: len=%d", i.Len())
	}

	diff := Difference(a, b)
	if diff.Len() != 1 || !diff.Contains(atom.FromI64(1)) {
		t.Errorf("Difference incorrect: len=%d", diff.Len())
	}
}

func TestRepeatedKeysDictionaryThreeWayRebase(t *testing.T) {
	base := NewRepeatedKeysDictionary().Add("tags", atom.FromI64(1)).Add("tags", atom.FromI64(2))

	local := base.Add("tags", atom.FromI64(3))   // local adds a fresh element, leaves 1 and 2 alone
	remote := base.Remove("tags", atom.FromI64(2)) // remote removes an element neither side re-adds

	merged := Rebase(base, local, remote)
	set := merged.Get("tags")

	if !set.Contains(atom.FromI64(1)) {
		t.Error("expected untouched element 1 to survive")
	}
	if !set.Contains(atom.FromI64(3)) {
		t.Error("expected local add of 3 to survive")
	}
	if set.Contains(atom.FromI64(2)) {
		t.Error("remote removal of 2 must propagate even though local never touched it")
	}
}

func TestRepeatedKeysDictionaryRemoveWinsOverConflictingAdd(t *testing.T) {
	base := NewRepeatedKeysDictionary().Add("tags", atom.FromI64(1))

	// Both sides act on the same base element: remote removes it, local
	// leaves the base copy untouched (an implicit "keep", not an
	// explicit re-add) — the documented rule is that any removal wins,
	// so the merged result must not resurrect it.
	remote := base.Remove("tags", atom.FromI64(1))
	local := base

	merged := Rebase(base, local, remote)
	if merged.Get("tags").Contains(atom.FromI64(1)) {
		t.Error("removal must win even though local's copy still carried the base element")
	}
}
