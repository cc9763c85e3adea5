package collections

import "github.com/protobase/protobase/pkg/atom"

var sentinel = atom.SetSentinel()

func elementKey(v atom.Value) []byte {
	tag, body, refs := atom.EncodeValue(v)
	return atom.Encode(tag, body, refs)
}

// decodeElementKey inverts elementKey. key is always bytes this package
// produced with atom.Encode, so a decode failure means the set's own
// invariant was violated, not bad external input.
func decodeElementKey(key []byte) atom.Value {
	a, _, err := atom.Decode(key, nil)
	if err != nil {
		panic(err)
	}
	v, err := atom.DecodeValue(a)
	if err != nil {
		panic(err)
	}
	return v
}

// Set is a persistent set of atom values, built on HashDictionary with a
// constant sentinel value per §4's "Set as HAMT + sentinel" note — the
// sentinel lets Set reuse HashDictionary's structure and TagHAMTLeaf
// encoding wholesale instead of a parallel implementation.
type Set struct {
	inner *HashDictionary
}

func NewSet(values ...atom.Value) *Set {
	s := &Set{inner: NewHashDictionary()}
	for _, v := range values {
		s = s.Add(v)
	}
	return s
}

func (s *Set) Len() int { return s.inner.Len() }

func (s *Set) Contains(v atom.Value) bool {
	_, ok := s.inner.Get(elementKey(v))
	return ok
}

func (s *Set) Add(v atom.Value) *Set {
	return &Set{inner: s.inner.Put(elementKey(v), sentinel)}
}

func (s *Set) Remove(v atom.Value) *Set {
	inner, ok := s.inner.Delete(elementKey(v))
	if !ok {
		return s
	}
	return &Set{inner: inner}
}

// Each visits every element in the HAMT's deterministic bitmap-position
// order, the same walk HashDictionary.Each uses, so two sets built from the
// same elements always iterate identically regardless of insertion order.
func (s *Set) Each(fn func(atom.Value)) {
	s.inner.Each(func(key []byte, _ atom.Value) {
		fn(decodeElementKey(key))
	})
}

func (s *Set) ToSlice() []atom.Value {
	out := make([]atom.Value, 0, s.Len())
	s.Each(func(v atom.Value) { out = append(out, v) })
	return out
}

// ToAtoms delegates to the underlying HashDictionary; Set's atom shape is
// exactly HashDictionary's, per §4's "Set as HAMT + sentinel" note.
func (s *Set) ToAtoms() ([]atom.Atom, atom.ID) { return s.inner.ToAtoms() }

// FromSet reconstructs a Set from a HashDictionary root atom.
func FromSet(id atom.ID, resolve Resolver) (*Set, error) {
	inner, err := FromHashDictionary(id, resolve)
	if err != nil {
		return nil, err
	}
	return &Set{inner: inner}, nil
}

// Union, Intersection and Difference are the derived set algebra
// operations, built element by element from Add, Contains and Remove.
func Union(a, b *Set) *Set {
	out := a
	b.Each(func(v atom.Value) { out = out.Add(v) })
	return out
}

func Intersection(a, b *Set) *Set {
	out := NewSet()
	a.Each(func(v atom.Value) {
		if b.Contains(v) {
			out = out.Add(v)
		}
	})
	return out
}

func Difference(a, b *Set) *Set {
	out := a
	b.Each(func(v atom.Value) { out = out.Remove(v) })
	return out
}
