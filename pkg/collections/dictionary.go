package collections

import (
	"golang.org/x/text/unicode/norm"

	"github.com/protobase/protobase/pkg/atom"
)

// Dictionary is a persistent string-keyed map built on HashDictionary,
// normalizing keys to NFC before hashing so that two logically equal
// keys in different Unicode normal forms always collide to the same
// entry, the same invariant atom.FromString upholds for string values.
type Dictionary struct {
	inner *HashDictionary
}

func NewDictionary() *Dictionary { return &Dictionary{inner: NewHashDictionary()} }

func dictKeyBytes(key string) []byte {
	return []byte(norm.NFC.String(key))
}

func (d *Dictionary) Len() int { return d.inner.Len() }

func (d *Dictionary) Get(key string) (atom.Value, bool) {
	return d.inner.Get(dictKeyBytes(key))
}

func (d *Dictionary) Put(key string, value atom.Value) *Dictionary {
	return &Dictionary{inner: d.inner.Put(dictKeyBytes(key), value)}
}

func (d *Dictionary) Delete(key string) (*Dictionary, bool) {
	inner, ok := d.inner.Delete(dictKeyBytes(key))
	return &Dictionary{inner: inner}, ok
}

func (d *Dictionary) Each(fn func(key string, value atom.Value)) {
	d.inner.Each(func(k []byte, v atom.Value) { fn(string(k), v) })
}

func (d *Dictionary) Keys() []string {
	raw := d.inner.Keys()
	out := make([]string, len(raw))
	for i, k := range raw {
		out[i] = string(k)
	}
	return out
}

// ToAtoms delegates to the underlying HashDictionary; a Dictionary has no
// atom shape of its own beyond NFC-normalized keys.
func (d *Dictionary) ToAtoms() ([]atom.Atom, atom.ID) { return d.inner.ToAtoms() }

// FromDictionary reconstructs a Dictionary from a HashDictionary root atom.
func FromDictionary(id atom.ID, resolve Resolver) (*Dictionary, error) {
	inner, err := FromHashDictionary(id, resolve)
	if err != nil {
		return nil, err
	}
	return &Dictionary{inner: inner}, nil
}
