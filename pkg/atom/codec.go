package atom

import (
	"encoding/binary"
	"math"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// Encode produces the canonical byte form of an atom whose tag/body/refs
// are already final:
//
//	[tag:1][len:varint][body:len][refs_count:varint][refs:refs_count×16]
//
// The returned bytes are what Identity hashes; callers must not feed a
// non-canonical body (e.g. unsorted HAMT branch children) through Encode.
func Encode(tag Tag, body []byte, refs []ID) []byte {
	buf := make([]byte, 0, 1+10+len(body)+10+16*len(refs))
	buf = append(buf, byte(tag))
	buf = appendVarint(buf, uint64(len(body)))
	buf = append(buf, body...)
	buf = appendVarint(buf, uint64(len(refs)))
	for _, r := range refs {
		buf = append(buf, r[:]...)
	}
	return buf
}

// New builds an Atom from tag/body/refs, computing its content-addressed
// identity from the canonical encoding.
func New(tag Tag, body []byte, refs []ID) Atom {
	enc := Encode(tag, body, refs)
	return Atom{ID: Identity(enc), Tag: tag, Body: body, Refs: refs}
}

// Decode parses a canonical encoding back into an Atom, recomputing its
// identity to cross-check the content hash. frameAtomIDs, when non-nil, is
// the set of atom ids appearing earlier in the containing WAL frame; any
// ref not found there and not equal to Nil triggers CorruptAtom, per §4.1's
// "refs resolve outside the containing WAL frame" failure mode.
func Decode(buf []byte, frameAtomIDs map[ID]bool) (Atom, int, error) {
	if len(buf) < 1 {
		return Atom{}, 0, &perrors.ShortRead{Want: 1, Got: len(buf)}
	}
	tag := Tag(buf[0])
	if !knownTags[tag] {
		return Atom{}, 0, &perrors.CorruptAtom{Reason: "unknown tag"}
	}
	off := 1

	bodyLen, n, err := readVarint(buf[off:])
	if err != nil {
		return Atom{}, 0, err
	}
	off += n

	if uint64(len(buf)-off) < bodyLen {
		return Atom{}, 0, &perrors.ShortRead{Want: int(bodyLen), Got: len(buf) - off}
	}
	body := buf[off : off+int(bodyLen)]
	off += int(bodyLen)

	refCount, n, err := readVarint(buf[off:])
	if err != nil {
		return Atom{}, 0, err
	}
	off += n

	needed := int(refCount) * 16
	if len(buf)-off < needed {
		return Atom{}, 0, &perrors.ShortRead{Want: needed, Got: len(buf) - off}
	}
	refs := make([]ID, refCount)
	for i := range refs {
		copy(refs[i][:], buf[off:off+16])
		off += 16
		if frameAtomIDs != nil && !refs[i].IsNil() && !frameAtomIDs[refs[i]] {
			return Atom{}, 0, &perrors.CorruptAtom{Reason: "reference resolves outside containing frame"}
		}
	}

	canonical := buf[:off]
	return Atom{ID: Identity(canonical), Tag: tag, Body: body, Refs: refs}, off, nil
}

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readVarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, &perrors.CorruptAtom{Reason: "malformed varint"}
	}
	return v, n, nil
}

// EncodeValue produces the tag/body/refs triple for a scalar Value, used by
// list nodes, HAMT leaves and any other site that stores a Value directly.
func EncodeValue(v Value) (Tag, []byte, []ID) {
	switch v.Tag {
	case TagNull:
		return TagNull, nil, nil
	case TagBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return TagBool, []byte{b}, nil
	case TagI64:
		body := make([]byte, 8)
		binary.LittleEndian.PutUint64(body, uint64(v.I64))
		return TagI64, body, nil
	case TagF64:
		body := make([]byte, 8)
		binary.LittleEndian.PutUint64(body, math.Float64bits(v.F64))
		return TagF64, body, nil
	case TagStr:
		body := appendVarint(nil, uint64(len(v.Str)))
		body = append(body, v.Str...)
		return TagStr, body, nil
	case TagBytes:
		return TagBytes, v.Bytes, nil
	case TagAtomRef:
		return TagAtomRef, nil, []ID{v.Ref}
	case TagSetSentinel:
		return TagSetSentinel, nil, nil
	default:
		return TagNull, nil, nil
	}
}

// DecodeValue is the inverse of EncodeValue for a decoded Atom.
func DecodeValue(a Atom) (Value, error) {
	switch a.Tag {
	case TagNull:
		return Null(), nil
	case TagBool:
		if len(a.Body) != 1 {
			return Value{}, &perrors.CorruptAtom{Reason: "bool body must be 1 byte"}
		}
		return FromBool(a.Body[0] != 0), nil
	case TagI64:
		if len(a.Body) != 8 {
			return Value{}, &perrors.CorruptAtom{Reason: "i64 body must be 8 bytes"}
		}
		return FromI64(int64(binary.LittleEndian.Uint64(a.Body))), nil
	case TagF64:
		if len(a.Body) != 8 {
			return Value{}, &perrors.CorruptAtom{Reason: "f64 body must be 8 bytes"}
		}
		return FromF64(math.Float64frombits(binary.LittleEndian.Uint64(a.Body))), nil
	case TagStr:
		l, n, err := readVarint(a.Body)
		if err != nil {
			return Value{}, err
		}
		if uint64(len(a.Body)-n) != l {
			return Value{}, &perrors.CorruptAtom{Reason: "str length mismatch"}
		}
		return Value{Tag: TagStr, Str: string(a.Body[n:])}, nil
	case TagBytes:
		return FromBytes(a.Body), nil
	case TagAtomRef:
		if len(a.Refs) != 1 {
			return Value{}, &perrors.CorruptAtom{Reason: "atomref must have exactly one ref"}
		}
		return FromRef(a.Refs[0]), nil
	case TagSetSentinel:
		return SetSentinel(), nil
	default:
		return Value{}, &perrors.CorruptAtom{Reason: "not a value tag: " + a.Tag.String()}
	}
}
