package objectspace

import (
	"sort"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// RootMap is the atom-encoded name->atom_id mapping every object space
// advances atomically per commit. Entries are kept sorted lexicographically
// by name so that two root maps built from the same set of bindings always
// produce the same canonical bytes, and therefore the same atom identity.
type RootMap struct {
	entries []rootEntry
}

type rootEntry struct {
	name string
	id   atom.ID
}

func NewRootMap() *RootMap { return &RootMap{} }

func (r *RootMap) Get(name string) (atom.ID, bool) {
	i := sort.Search(len(r.entries), func(i int) bool { return r.entries[i].name >= name })
	if i < len(r.entries) && r.entries[i].name == name {
		return r.entries[i].id, true
	}
	return atom.Nil, false
}

// Set returns a new RootMap with name bound to id, preserving sorted order.
func (r *RootMap) Set(name string, id atom.ID) *RootMap {
	entries := make([]rootEntry, 0, len(r.entries)+1)
	inserted := false
	for _, e := range r.entries {
		if !inserted && e.name >= name {
			if e.name == name {
				entries = append(entries, rootEntry{name: name, id: id})
				inserted = true
				continue
			}
			entries = append(entries, rootEntry{name: name, id: id})
			inserted = true
		}
		entries = append(entries, e)
	}
	if !inserted {
		entries = append(entries, rootEntry{name: name, id: id})
	}
	return &RootMap{entries: entries}
}

func (r *RootMap) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Encode builds the RootMap's canonical atom: body is the sorted names,
// varint-length-prefixed and concatenated; refs are the corresponding
// atom ids in the same order, so refs[i] is the binding for the i-th name
// in body.
func (r *RootMap) Encode() atom.Atom {
	var body []byte
	refs := make([]atom.ID, 0, len(r.entries))
	for _, e := range r.entries {
		body = appendVarint(body, uint64(len(e.name)))
		body = append(body, e.name...)
		refs = append(refs, e.id)
	}
	return atom.New(atom.TagRootMap, body, refs)
}

// DecodeRootMap is the inverse of Encode.
func DecodeRootMap(a atom.Atom) (*RootMap, error) {
	if a.Tag != atom.TagRootMap {
		return nil, &perrors.CorruptAtom{Reason: "not a root map atom"}
	}
	var entries []rootEntry
	off := 0
	for i := 0; off < len(a.Body); i++ {
		if i >= len(a.Refs) {
			return nil, &perrors.CorruptAtom{Reason: "root map refs shorter than names"}
		}
		l, n, err := readVarint(a.Body[off:])
		if err != nil {
			return nil, err
		}
		off += n
		if uint64(len(a.Body)-off) < l {
			return nil, &perrors.ShortRead{Want: int(l), Got: len(a.Body) - off}
		}
		name := string(a.Body[off : off+int(l)])
		off += int(l)
		entries = append(entries, rootEntry{name: name, id: a.Refs[i]})
	}
	return &RootMap{entries: entries}, nil
}
