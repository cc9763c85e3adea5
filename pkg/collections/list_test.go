package collections

import (
	"testing"

	"github.com/protobase/protobase/pkg/atom"
)

func TestListAppendGetOrder(t *testing.T) {
	l := NewList()
	for i := 0; i < 100; i++ {
		l = l.Append(atom.FromI64(int64(i)))
	}
	if l.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", l.Len())
	}
	for i := 0; i < 100; i++ {
		v, err := l.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if v.I64 != int64(i) {
			t.Errorf("Get(%d) = %d, want %d", i, v.I64, i)
		}
	}
}

func TestListIsImmutableAcrossMutation(t *testing.T) {
	l1 := NewList(atom.FromI64(1), atom.FromI64(2), atom.FromI64(3))
	l2 := l1.Append(atom.FromI64(4))

	if l1.Len() != 3 {
		t.Fatalf("l1.Len() = %d, want 3 (original must be untouched)", l1.Len())
	}
	if l2.Len() != 4 {
		t.Fatalf("l2.Len() = %d, want 4", l2.Len())
	}
}

func TestListInsertSetRemove(t *testing.T) {
	l := NewList(atom.FromI64(1), atom.FromI64(2), atom.FromI64(4))

	l, err := l.Insert(2, atom.FromI64(3))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got := l.ToSlice()
	for i, want := range []int64{1, 2, 3, 4} {
		if got[i].I64 != want {
			t.Errorf("after insert, [%d] = %d, want %d", i, got[i].I64, want)
		}
	}

	l, err = l.Set(0, atom.FromI64(100))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, _ := l.Get(0)
	if v.I64 != 100 {
		t.Errorf("Set(0) produced %d, want 100", v.I64)
	}

	l, err = l.Remove(1)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() after remove = %d, want 3", l.Len())
	}
}

func TestListSliceAndTail(t *testing.T) {
	l := NewList()
	for i := 0; i < 10; i++ {
		l = l.Append(atom.FromI64(int64(i)))
	}
	s, err := l.Slice(3, 7)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	want := []int64{3, 4, 5, 6}
	for i, w := range want {
		v, _ := s.Get(i)
		if v.I64 != w {
			t.Errorf("Slice[%d] = %d, want %d", i, v.I64, w)
		}
	}

	tail, err := l.Tail(8)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if tail.Len() != 2 {
		t.Fatalf("Tail(8).Len() = %d, want 2", tail.Len())
	}
}

func TestListOutOfRangeErrors(t *testing.T) {
	l := NewList(atom.FromI64(1))
	if _, err := l.Get(5); err == nil {
		t.Fatal("expected IndexError")
	}
}
