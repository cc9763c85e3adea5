// Package collections implements the persistent, copy-on-write data
// structures every ProtoBase object space stores atoms through: List, Set,
// HashDictionary, Dictionary, RepeatedKeysDictionary and Vector. Every
// mutation returns a new, independent root while structurally sharing
// untouched subtrees with the original, mirroring the copy-on-write
// discipline the teacher's B+Tree used latch-crabbing locks to fake
// concurrently; here immutability gives that for free.
package collections

import (
	"math/bits"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// listNode is a treap node ordered by insertion position rather than key:
// Size is the subtree's element count (the order statistic), Priority is
// a fixed, content-derived value so that two lists built from the same
// sequence of operations shape identically, keeping content addressing
// meaningful for List the way it already is for the hash-based
// collections.
type listNode struct {
	value    atom.Value
	priority uint32
	size     int
	left     *listNode
	right    *listNode
}

func size(n *listNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func newListNode(value atom.Value, left, right *listNode) *listNode {
	return &listNode{
		value:    value,
		priority: treapPriority(value, left, right),
		size:     size(left) + size(right) + 1,
		left:     left,
		right:    right,
	}
}

// treapPriority derives a heap priority from the node's content and
// immediate children identities so that two structurally-equal lists
// always balance the same way, regardless of insertion order history.
func treapPriority(v atom.Value, left, right *listNode) uint32 {
	tag, body, refs := atom.EncodeValue(v)
	enc := atom.Encode(tag, body, refs)
	h := atom.KeyHash32(enc)
	if left != nil {
		h = bits.RotateLeft32(h, 13) ^ left.priority
	}
	if right != nil {
		h = bits.RotateLeft32(h, 7) ^ right.priority
	}
	return h
}

// List is a persistent, order-statistic sequence with O(log n) get,
// append, insert, set, remove and slice (via split/join).
type List struct {
	root *listNode
}

// NewList builds a list from an initial sequence of values in O(n log n).
func NewList(values ...atom.Value) *List {
	l := &List{}
	for _, v := range values {
		l = l.Append(v)
	}
	return l
}

func (l *List) Len() int { return size(l.root) }

// Get returns the element at index i, or IndexError if out of range.
func (l *List) Get(i int) (atom.Value, error) {
	if i < 0 || i >= l.Len() {
		return atom.Value{}, &perrors.IndexError{Index: i, Len: l.Len()}
	}
	return get(l.root, i), nil
}

func get(n *listNode, i int) atom.Value {
	left := size(n.left)
	switch {
	case i < left:
		return get(n.left, i)
	case i == left:
		return n.value
	default:
		return get(n.right, i-left-1)
	}
}

// split divides n into a prefix of the first k elements and the
// remaining suffix.
func split(n *listNode, k int) (*listNode, *listNode) {
	if n == nil {
		return nil, nil
	}
	left := size(n.left)
	if k <= left {
		l, r := split(n.left, k)
		return l, newListNode(n.value, r, n.right)
	}
	l, r := split(n.right, k-left-1)
	return newListNode(n.value, n.left, l), r
}

// join concatenates two treaps, a entirely before b, preserving the
// treap heap-order invariant on priority.
func join(a, b *listNode) *listNode {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.priority > b.priority {
		return newListNode(a.value, a.left, join(a.right, b))
	}
	return newListNode(b.value, join(a, b.left), b.right)
}

// Append returns a new list with value placed at the end.
func (l *List) Append(value atom.Value) *List {
	return &List{root: join(l.root, newListNode(value, nil, nil))}
}

// Insert returns a new list with value placed at index i, shifting
// elements at or after i to the right.
func (l *List) Insert(i int, value atom.Value) (*List, error) {
	if i < 0 || i > l.Len() {
		return nil, &perrors.IndexError{Index: i, Len: l.Len()}
	}
	left, right := split(l.root, i)
	return &List{root: join(join(left, newListNode(value, nil, nil)), right)}, nil
}

// Set returns a new list with the element at index i replaced.
func (l *List) Set(i int, value atom.Value) (*List, error) {
	if i < 0 || i >= l.Len() {
		return nil, &perrors.IndexError{Index: i, Len: l.Len()}
	}
	left, mid := split(l.root, i)
	_, right := split(mid, 1)
	return &List{root: join(join(left, newListNode(value, nil, nil)), right)}, nil
}

// Remove returns a new list without the element at index i.
func (l *List) Remove(i int) (*List, error) {
	if i < 0 || i >= l.Len() {
		return nil, &perrors.IndexError{Index: i, Len: l.Len()}
	}
	left, mid := split(l.root, i)
	_, right := split(mid, 1)
	return &List{root: join(left, right)}, nil
}

// Slice returns the sub-list [lower, upper), in O(log n).
func (l *List) Slice(lower, upper int) (*List, error) {
	if lower < 0 || upper > l.Len() || lower > upper {
		return nil, &perrors.IndexError{Index: lower, Len: l.Len()}
	}
	_, fromLower := split(l.root, lower)
	mid, _ := split(fromLower, upper-lower)
	return &List{root: mid}, nil
}

// Tail returns the sub-list starting at lowerLimit through the end,
// computed as Slice(lowerLimit, Len()).
func (l *List) Tail(lowerLimit int) (*List, error) {
	return l.Slice(lowerLimit, l.Len())
}

// ToSlice materializes the list's elements in order.
func (l *List) ToSlice() []atom.Value {
	out := make([]atom.Value, 0, l.Len())
	var walk func(*listNode)
	walk = func(n *listNode) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, n.value)
		walk(n.right)
	}
	walk(l.root)
	return out
}

// ToAtoms flattens the list into TagListNode atoms, post-order so every
// child appears before the node referencing it, and returns the id of the
// root atom (atom.Nil for an empty list).
func (l *List) ToAtoms() ([]atom.Atom, atom.ID) {
	var atoms []atom.Atom
	id := flattenListNode(l.root, &atoms)
	return atoms, id
}

func flattenListNode(n *listNode, out *[]atom.Atom) atom.ID {
	if n == nil {
		return atom.Nil
	}
	leftID := flattenListNode(n.left, out)
	rightID := flattenListNode(n.right, out)

	valueTag, valueBody, valueRefs := atom.EncodeValue(n.value)
	body := []byte{byte(valueTag)}
	body = appendVarint(body, uint64(len(valueBody)))
	body = append(body, valueBody...)

	refs := []atom.ID{encodedValueRef(valueRefs), leftID, rightID}
	a := atom.New(atom.TagListNode, body, refs)
	*out = append(*out, a)
	return a.ID
}

// FromList reconstructs a List from a TagListNode root atom id, resolving
// the root atom and every referenced child through resolve.
func FromList(id atom.ID, resolve Resolver) (*List, error) {
	root, err := decodeListNode(id, resolve)
	if err != nil {
		return nil, err
	}
	return &List{root: root}, nil
}

func decodeListNode(id atom.ID, resolve Resolver) (*listNode, error) {
	if id.IsNil() {
		return nil, nil
	}
	a, ok := resolve(id)
	if !ok {
		return nil, &perrors.CorruptAtom{Reason: "list node atom missing"}
	}
	if a.Tag != atom.TagListNode {
		return nil, &perrors.CorruptAtom{Reason: "not a list node atom"}
	}
	if len(a.Refs) != 3 {
		return nil, &perrors.CorruptAtom{Reason: "list node must have exactly 3 refs"}
	}
	if len(a.Body) < 1 {
		return nil, &perrors.CorruptAtom{Reason: "list node body too short"}
	}

	valueTag := atom.Tag(a.Body[0])
	valueLen, n, err := readVarint(a.Body[1:])
	if err != nil {
		return nil, err
	}
	off := 1 + n
	if uint64(len(a.Body)-off) != valueLen {
		return nil, &perrors.CorruptAtom{Reason: "list node value length mismatch"}
	}
	value, err := atom.DecodeValue(atom.Atom{
		Tag:  valueTag,
		Body: a.Body[off:],
		Refs: valueRefsForDecode(valueTag, a.Refs[0]),
	})
	if err != nil {
		return nil, err
	}

	left, err := decodeListNode(a.Refs[1], resolve)
	if err != nil {
		return nil, err
	}
	right, err := decodeListNode(a.Refs[2], resolve)
	if err != nil {
		return nil, err
	}
	return newListNode(value, left, right), nil
}
