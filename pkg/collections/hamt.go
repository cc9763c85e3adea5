package collections

import (
	"bytes"
	"math/bits"
	"sort"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

const (
	hamtBranchFactor = 32
	hamtChunkBits    = 5
	hamtChunkMask    = hamtBranchFactor - 1
	hamtMaxDepth     = (32 + hamtChunkBits - 1) / hamtChunkBits // enough chunks to exhaust a 32-bit hash
)

// hamtEntry is one key/value pair; Key holds the canonical encoded bytes
// the key was hashed from, so collisions can be resolved by exact
// comparison.
type hamtEntry struct {
	key   []byte
	value atom.Value
}

// hamtNode is either a branch (bitmap over present children) or a leaf
// (a hash bucket holding one or more entries that either share a hash or
// have exhausted all 32 bits of chunk depth).
type hamtNode struct {
	// branch fields
	bitmap   uint32
	children []*hamtNode

	// leaf fields
	isLeaf  bool
	hash    uint32
	entries []hamtEntry
}

func chunkAt(hash uint32, depth int) uint32 {
	shift := uint(depth * hamtChunkBits)
	if shift >= 32 {
		return 0
	}
	return (hash >> shift) & hamtChunkMask
}

func (n *hamtNode) childIndex(bit uint32) int {
	return bits.OnesCount32(n.bitmap & (bit - 1))
}

func hamtGet(n *hamtNode, hash uint32, key []byte, depth int) (atom.Value, bool) {
	if n == nil {
		return atom.Value{}, false
	}
	if n.isLeaf {
		if n.hash != hash {
			return atom.Value{}, false
		}
		for _, e := range n.entries {
			if bytes.Equal(e.key, key) {
				return e.value, true
			}
		}
		return atom.Value{}, false
	}
	bit := uint32(1) << chunkAt(hash, depth)
	if n.bitmap&bit == 0 {
		return atom.Value{}, false
	}
	return hamtGet(n.children[n.childIndex(bit)], hash, key, depth+1)
}

// hamtPut returns a new root with key/value inserted or overwritten.
func hamtPut(n *hamtNode, hash uint32, key []byte, value atom.Value, depth int) *hamtNode {
	if n == nil {
		return &hamtNode{isLeaf: true, hash: hash, entries: []hamtEntry{{key: key, value: value}}}
	}

	if n.isLeaf {
		if n.hash == hash {
			entries := make([]hamtEntry, 0, len(n.entries)+1)
			replaced := false
			for _, e := range n.entries {
				if bytes.Equal(e.key, key) {
					entries = append(entries, hamtEntry{key: key, value: value})
					replaced = true
				} else {
					entries = append(entries, e)
				}
			}
			if !replaced {
				entries = append(entries, hamtEntry{key: key, value: value})
			}
			return &hamtNode{isLeaf: true, hash: hash, entries: entries}
		}
		if depth >= hamtMaxDepth {
			// Hash space exhausted: degrade to a single collision bucket
			// keyed by the shared chunk value of zero, same as leaf merge.
			entries := append(append([]hamtEntry{}, n.entries...), hamtEntry{key: key, value: value})
			return &hamtNode{isLeaf: true, hash: hash, entries: entries}
		}
		// Two distinct hashes collide at this depth's leaf: explode into
		// a branch and push both down.
		branch := &hamtNode{}
		branch = hamtInsertChild(branch, chunkAt(n.hash, depth), n)
		return hamtPut(branch, hash, key, value, depth)
	}

	bit := uint32(1) << chunkAt(hash, depth)
	idx := n.childIndex(bit)
	if n.bitmap&bit == 0 {
		return hamtInsertChild(cloneBranch(n), chunkAt(hash, depth), hamtPut(nil, hash, key, value, depth+1))
	}
	newChild := hamtPut(n.children[idx], hash, key, value, depth+1)
	children := append([]*hamtNode{}, n.children...)
	children[idx] = newChild
	return &hamtNode{bitmap: n.bitmap, children: children}
}

func cloneBranch(n *hamtNode) *hamtNode {
	return &hamtNode{bitmap: n.bitmap, children: append([]*hamtNode{}, n.children...)}
}

// hamtInsertChild inserts child at the canonical, bitmap-sorted position
// for chunk, keeping children ordered by ascending bit position the way
// the branch's on-disk encoding requires.
func hamtInsertChild(n *hamtNode, chunk uint32, child *hamtNode) *hamtNode {
	bit := uint32(1) << chunk
	idx := bits.OnesCount32(n.bitmap & (bit - 1))
	children := make([]*hamtNode, 0, len(n.children)+1)
	children = append(children, n.children[:idx]...)
	children = append(children, child)
	children = append(children, n.children[idx:]...)
	return &hamtNode{bitmap: n.bitmap | bit, children: children}
}

// hamtDelete returns a new root with key removed, and whether it was
// present.
func hamtDelete(n *hamtNode, hash uint32, key []byte, depth int) (*hamtNode, bool) {
	if n == nil {
		return nil, false
	}
	if n.isLeaf {
		if n.hash != hash {
			return n, false
		}
		entries := make([]hamtEntry, 0, len(n.entries))
		found := false
		for _, e := range n.entries {
			if bytes.Equal(e.key, key) {
				found = true
				continue
			}
			entries = append(entries, e)
		}
		if !found {
			return n, false
		}
		if len(entries) == 0 {
			return nil, true
		}
		return &hamtNode{isLeaf: true, hash: hash, entries: entries}, true
	}

	bit := uint32(1) << chunkAt(hash, depth)
	if n.bitmap&bit == 0 {
		return n, false
	}
	idx := n.childIndex(bit)
	newChild, ok := hamtDelete(n.children[idx], hash, key, depth+1)
	if !ok {
		return n, false
	}
	if newChild == nil {
		children := make([]*hamtNode, 0, len(n.children)-1)
		children = append(children, n.children[:idx]...)
		children = append(children, n.children[idx+1:]...)
		if len(children) == 0 {
			return nil, true
		}
		return &hamtNode{bitmap: n.bitmap &^ bit, children: children}, true
	}
	children := append([]*hamtNode{}, n.children...)
	children[idx] = newChild
	return &hamtNode{bitmap: n.bitmap, children: children}, true
}

func hamtCount(n *hamtNode) int {
	if n == nil {
		return 0
	}
	if n.isLeaf {
		return len(n.entries)
	}
	total := 0
	for _, c := range n.children {
		total += hamtCount(c)
	}
	return total
}

func hamtEach(n *hamtNode, fn func(key []byte, value atom.Value)) {
	if n == nil {
		return
	}
	if n.isLeaf {
		for _, e := range n.entries {
			fn(e.key, e.value)
		}
		return
	}
	for _, c := range n.children {
		hamtEach(c, fn)
	}
}

// HashDictionary is a persistent hash map keyed by arbitrary canonical
// byte strings, using 32-way HAMT branching over 5-bit hash chunks.
type HashDictionary struct {
	root *hamtNode
}

func NewHashDictionary() *HashDictionary { return &HashDictionary{} }

func (d *HashDictionary) Len() int { return hamtCount(d.root) }

func (d *HashDictionary) Get(key []byte) (atom.Value, bool) {
	return hamtGet(d.root, atom.KeyHash32(key), key, 0)
}

func (d *HashDictionary) Put(key []byte, value atom.Value) *HashDictionary {
	return &HashDictionary{root: hamtPut(d.root, atom.KeyHash32(key), key, value, 0)}
}

func (d *HashDictionary) Delete(key []byte) (*HashDictionary, bool) {
	root, ok := hamtDelete(d.root, atom.KeyHash32(key), key, 0)
	return &HashDictionary{root: root}, ok
}

// Each calls fn for every key/value pair in trie order: children in
// ascending hash-chunk order at each level.
func (d *HashDictionary) Each(fn func(key []byte, value atom.Value)) {
	hamtEach(d.root, fn)
}

// Keys returns every key, sorted, for deterministic iteration (e.g.
// RootMap encoding).
func (d *HashDictionary) Keys() [][]byte {
	var keys [][]byte
	d.Each(func(k []byte, _ atom.Value) { keys = append(keys, k) })
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	return keys
}

// ToAtoms flattens the trie into TagHAMTBranch/TagHAMTLeaf atoms, children
// before parents, preserving each branch's canonical bitmap-ascending child
// order in its refs. Returns atom.Nil for an empty dictionary.
func (d *HashDictionary) ToAtoms() ([]atom.Atom, atom.ID) {
	var atoms []atom.Atom
	id := flattenHAMTNode(d.root, &atoms)
	return atoms, id
}

func flattenHAMTNode(n *hamtNode, out *[]atom.Atom) atom.ID {
	if n == nil {
		return atom.Nil
	}
	if n.isLeaf {
		body := appendUint32(nil, n.hash)
		refs := make([]atom.ID, 0, len(n.entries))
		for _, e := range n.entries {
			body = appendVarint(body, uint64(len(e.key)))
			body = append(body, e.key...)
			valueTag, valueBody, valueRefs := atom.EncodeValue(e.value)
			body = append(body, byte(valueTag))
			body = appendVarint(body, uint64(len(valueBody)))
			body = append(body, valueBody...)
			refs = append(refs, encodedValueRef(valueRefs))
		}
		a := atom.New(atom.TagHAMTLeaf, body, refs)
		*out = append(*out, a)
		return a.ID
	}

	body := appendUint32(nil, n.bitmap)
	refs := make([]atom.ID, len(n.children))
	for i, c := range n.children {
		refs[i] = flattenHAMTNode(c, out)
	}
	a := atom.New(atom.TagHAMTBranch, body, refs)
	*out = append(*out, a)
	return a.ID
}

// FromHashDictionary reconstructs a HashDictionary from a trie root atom
// id, resolving every referenced branch/leaf through resolve.
func FromHashDictionary(id atom.ID, resolve Resolver) (*HashDictionary, error) {
	root, err := decodeHAMTNode(id, resolve)
	if err != nil {
		return nil, err
	}
	return &HashDictionary{root: root}, nil
}

func decodeHAMTNode(id atom.ID, resolve Resolver) (*hamtNode, error) {
	if id.IsNil() {
		return nil, nil
	}
	a, ok := resolve(id)
	if !ok {
		return nil, &perrors.CorruptAtom{Reason: "hamt node atom missing"}
	}

	switch a.Tag {
	case atom.TagHAMTBranch:
		if len(a.Body) != 4 {
			return nil, &perrors.CorruptAtom{Reason: "hamt branch body must be 4 bytes"}
		}
		children := make([]*hamtNode, len(a.Refs))
		for i, ref := range a.Refs {
			c, err := decodeHAMTNode(ref, resolve)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		return &hamtNode{bitmap: decodeUint32(a.Body), children: children}, nil

	case atom.TagHAMTLeaf:
		if len(a.Body) < 4 {
			return nil, &perrors.CorruptAtom{Reason: "hamt leaf body too short"}
		}
		hash := decodeUint32(a.Body[:4])
		off := 4
		entries := make([]hamtEntry, 0, len(a.Refs))
		for i := 0; off < len(a.Body); i++ {
			if i >= len(a.Refs) {
				return nil, &perrors.CorruptAtom{Reason: "hamt leaf refs shorter than entries"}
			}
			keyLen, n, err := readVarint(a.Body[off:])
			if err != nil {
				return nil, err
			}
			off += n
			if uint64(len(a.Body)-off) < keyLen {
				return nil, &perrors.ShortRead{Want: int(keyLen), Got: len(a.Body) - off}
			}
			key := append([]byte{}, a.Body[off:off+int(keyLen)]...)
			off += int(keyLen)

			if off >= len(a.Body) {
				return nil, &perrors.CorruptAtom{Reason: "hamt leaf entry missing value tag"}
			}
			valueTag := atom.Tag(a.Body[off])
			off++
			valueLen, n, err := readVarint(a.Body[off:])
			if err != nil {
				return nil, err
			}
			off += n
			if uint64(len(a.Body)-off) < valueLen {
				return nil, &perrors.ShortRead{Want: int(valueLen), Got: len(a.Body) - off}
			}
			value, err := atom.DecodeValue(atom.Atom{
				Tag:  valueTag,
				Body: a.Body[off : off+int(valueLen)],
				Refs: valueRefsForDecode(valueTag, a.Refs[i]),
			})
			if err != nil {
				return nil, err
			}
			off += int(valueLen)

			entries = append(entries, hamtEntry{key: key, value: value})
		}
		return &hamtNode{isLeaf: true, hash: hash, entries: entries}, nil

	default:
		return nil, &perrors.CorruptAtom{Reason: "not a hamt node atom"}
	}
}
