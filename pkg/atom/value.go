package atom

import "golang.org/x/text/unicode/norm"

// Value is the dynamic, tagged variant that collections actually store, per
// Design Note 1: the source's dynamic typing becomes one closed Go type
// instead of an `interface{}` with runtime type assertions scattered
// through every collection.
type Value struct {
	Tag   Tag
	Bool  bool
	I64   int64
	F64   float64
	Str   string
	Bytes []byte
	Ref   ID // valid when Tag == TagAtomRef
}

func Null() Value           { return Value{Tag: TagNull} }
func FromBool(b bool) Value { return Value{Tag: TagBool, Bool: b} }
func FromI64(i int64) Value { return Value{Tag: TagI64, I64: i} }
func FromF64(f float64) Value { return Value{Tag: TagF64, F64: f} }
func FromBytes(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{Tag: TagBytes, Bytes: cp}
}
func FromRef(id ID) Value { return Value{Tag: TagAtomRef, Ref: id} }

// SetSentinel is the constant value a persistent Set stores under every
// member key — membership is the key's presence, this value carries no
// information of its own, distinct from a Bool so a Set's HAMT leaves are
// never ambiguous with a Dictionary that happens to store booleans.
func SetSentinel() Value { return Value{Tag: TagSetSentinel} }

// FromString normalizes s to NFC before storing it, so that two
// byte-distinct but canonically equal strings produce the same Value, the
// same encoded bytes, and therefore the same atom identity (invariant 5).
func FromString(s string) Value {
	return Value{Tag: TagStr, Str: norm.NFC.String(s)}
}

// Equal reports whether two values are identical after normalization.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case TagNull:
		return true
	case TagBool:
		return v.Bool == o.Bool
	case TagI64:
		return v.I64 == o.I64
	case TagF64:
		return v.F64 == o.F64
	case TagStr:
		return v.Str == o.Str
	case TagBytes:
		return string(v.Bytes) == string(o.Bytes)
	case TagAtomRef:
		return v.Ref == o.Ref
	case TagSetSentinel:
		return true
	default:
		return false
	}
}

// Compare orders values of the same tag (Str, I64, F64, Bool); it is the
// ordering used by List and by any index built over a scalar key. Comparing
// values of different tags orders by tag number, so mixed-type collections
// still have a total order.
func (v Value) Compare(o Value) int {
	if v.Tag != o.Tag {
		if v.Tag < o.Tag {
			return -1
		}
		return 1
	}
	switch v.Tag {
	case TagNull:
		return 0
	case TagBool:
		if v.Bool == o.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case TagI64:
		switch {
		case v.I64 < o.I64:
			return -1
		case v.I64 > o.I64:
			return 1
		default:
			return 0
		}
	case TagF64:
		switch {
		case v.F64 < o.F64:
			return -1
		case v.F64 > o.F64:
			return 1
		default:
			return 0
		}
	case TagStr:
		switch {
		case v.Str < o.Str:
			return -1
		case v.Str > o.Str:
			return 1
		default:
			return 0
		}
	case TagAtomRef:
		for i := range v.Ref {
			if v.Ref[i] != o.Ref[i] {
				if v.Ref[i] < o.Ref[i] {
					return -1
				}
				return 1
			}
		}
		return 0
	default:
		return 0
	}
}
