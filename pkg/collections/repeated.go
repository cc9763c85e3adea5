package collections

import (
	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// RepeatedKeysDictionary maps each key to a Set of values, supporting a
// three-way rebase merge for the concurrent-writer conflict case: given
// a common base and two independently modified copies, the merged
// result is
//
//	((base ∪ localAdds) ∪ remoteAdds) − (localRemoves ∪ remoteRemoves)
//
// with remove winning over add on conflict, so a value removed by either
// side never reappears even if the other side re-added it.
type RepeatedKeysDictionary struct {
	sets map[string]*Set
}

func NewRepeatedKeysDictionary() *RepeatedKeysDictionary {
	return &RepeatedKeysDictionary{sets: map[string]*Set{}}
}

// Get returns the set of values stored under key, or an empty set.
func (d *RepeatedKeysDictionary) Get(key string) *Set {
	if s, ok := d.sets[key]; ok {
		return s
	}
	return NewSet()
}

func (d *RepeatedKeysDictionary) clone() map[string]*Set {
	out := make(map[string]*Set, len(d.sets)+1)
	for k, v := range d.sets {
		out[k] = v
	}
	return out
}

func (d *RepeatedKeysDictionary) Add(key string, value atom.Value) *RepeatedKeysDictionary {
	sets := d.clone()
	sets[key] = d.Get(key).Add(value)
	return &RepeatedKeysDictionary{sets: sets}
}

func (d *RepeatedKeysDictionary) Remove(key string, value atom.Value) *RepeatedKeysDictionary {
	sets := d.clone()
	newSet := d.Get(key).Remove(value)
	if newSet.Len() == 0 {
		delete(sets, key)
	} else {
		sets[key] = newSet
	}
	return &RepeatedKeysDictionary{sets: sets}
}

func (d *RepeatedKeysDictionary) Keys() []string {
	keys := make([]string, 0, len(d.sets))
	for k := range d.sets {
		keys = append(keys, k)
	}
	return keys
}

// RebaseKeyDiff is a single key's add/remove changes recorded by a
// transaction against a common base, used by Rebase to reconstruct a
// three-way merge.
type RebaseKeyDiff struct {
	Adds    []atom.Value
	Removes []atom.Value
}

func diffSets(base, modified *Set) RebaseKeyDiff {
	var diff RebaseKeyDiff
	modified.Each(func(v atom.Value) {
		if !base.Contains(v) {
			diff.Adds = append(diff.Adds, v)
		}
	})
	base.Each(func(v atom.Value) {
		if !modified.Contains(v) {
			diff.Removes = append(diff.Removes, v)
		}
	})
	return diff
}

// Rebase merges local's and remote's independent modifications to base
// using the documented three-way rule, remove winning over add.
func Rebase(base, local, remote *RepeatedKeysDictionary) *RepeatedKeysDictionary {
	keys := map[string]bool{}
	for k := range base.sets {
		keys[k] = true
	}
	for k := range local.sets {
		keys[k] = true
	}
	for k := range remote.sets {
		keys[k] = true
	}

	out := NewRepeatedKeysDictionary()
	for key := range keys {
		baseSet := base.Get(key)
		localDiff := diffSets(baseSet, local.Get(key))
		remoteDiff := diffSets(baseSet, remote.Get(key))

		merged := baseSet
		for _, v := range localDiff.Adds {
			merged = merged.Add(v)
		}
		for _, v := range remoteDiff.Adds {
			merged = merged.Add(v)
		}
		for _, v := range localDiff.Removes {
			merged = merged.Remove(v)
		}
		for _, v := range remoteDiff.Removes {
			merged = merged.Remove(v)
		}

		if merged.Len() > 0 {
			out.sets[key] = merged
		}
	}
	return out
}

// ToAtoms flattens every key's Set and indexes them behind a HashDictionary
// keyed by the same NFC-normalized bytes Dictionary uses, with each value
// an AtomRef to that key's Set root — reusing HashDictionary's atom shape
// rather than inventing a parallel one for one more level of nesting.
func (d *RepeatedKeysDictionary) ToAtoms() ([]atom.Atom, atom.ID) {
	var atoms []atom.Atom
	index := NewHashDictionary()
	for key, set := range d.sets {
		setAtoms, setID := set.ToAtoms()
		atoms = append(atoms, setAtoms...)
		index = index.Put(dictKeyBytes(key), atom.FromRef(setID))
	}
	indexAtoms, indexID := index.ToAtoms()
	atoms = append(atoms, indexAtoms...)
	return atoms, indexID
}

// FromRepeatedKeysDictionary reconstructs a RepeatedKeysDictionary from the
// HashDictionary-of-AtomRef root ToAtoms produces.
func FromRepeatedKeysDictionary(id atom.ID, resolve Resolver) (*RepeatedKeysDictionary, error) {
	index, err := FromHashDictionary(id, resolve)
	if err != nil {
		return nil, err
	}
	out := NewRepeatedKeysDictionary()
	var walkErr error
	index.Each(func(key []byte, v atom.Value) {
		if walkErr != nil {
			return
		}
		if v.Tag != atom.TagAtomRef {
			walkErr = &perrors.CorruptAtom{Reason: "repeated keys dictionary entry must be an atom ref"}
			return
		}
		set, err := FromSet(v.Ref, resolve)
		if err != nil {
			walkErr = err
			return
		}
		out.sets[string(key)] = set
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}
