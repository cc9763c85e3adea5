package collections

import (
	"github.com/protobase/protobase/pkg/atom"
)

// Resolver looks up an atom by id against whatever cache or store holds it
// (an ObjectSpace's in-memory atom cache, in practice). FromAtom-family
// functions never decide durability or caching themselves; they only walk
// refs through whatever Resolver the caller supplies.
type Resolver func(atom.ID) (atom.Atom, bool)

// encodedValueRef returns the single ref EncodeValue produced for v, or
// atom.Nil if v's tag carries no ref (every tag but TagAtomRef).
func encodedValueRef(refs []atom.ID) atom.ID {
	if len(refs) == 1 {
		return refs[0]
	}
	return atom.Nil
}

// valueRefsForDecode reconstructs the refs slice DecodeValue expects for a
// scalar atom of the given tag, given the single ref slot every collection
// node atom reserves for its value.
func valueRefsForDecode(tag atom.Tag, ref atom.ID) []atom.ID {
	if tag == atom.TagAtomRef {
		return []atom.ID{ref}
	}
	return nil
}
