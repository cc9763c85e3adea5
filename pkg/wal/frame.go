// Package wal implements the frame-oriented write-ahead log every commit
// appends to: a self-describing record of the atoms a transaction
// introduced plus the new root map identity they produce.
package wal

import (
	"encoding/binary"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// Magic identifies a ProtoBase frame record: "PBFR".
var Magic = [4]byte{'P', 'B', 'F', 'R'}

// Frame is one committed transaction's durable record:
//
//	[magic:4][txn_id:8][atom_count:varint][atoms...][new_root_id:16][checksum:4]
//
// The checksum covers everything from txn_id through new_root_id
// inclusive; magic is not covered since it exists to let recovery skip
// garbage quickly without a checksum pass.
type Frame struct {
	TxnID   uint64
	Atoms   []atom.Atom
	NewRoot atom.ID
}

// Encode produces the canonical on-disk bytes for f.
func Encode(f Frame) []byte {
	buf := AcquireBuffer()
	defer ReleaseBuffer(buf)

	body := (*buf)[:0]
	body = binary.LittleEndian.AppendUint64(body, f.TxnID)
	body = appendUvarint(body, uint64(len(f.Atoms)))
	for _, a := range f.Atoms {
		body = append(body, atom.Encode(a.Tag, a.Body, a.Refs)...)
	}
	body = append(body, f.NewRoot[:]...)

	checksum := CalculateCRC32(body)

	out := make([]byte, 0, 4+len(body)+4)
	out = append(out, Magic[:]...)
	out = append(out, body...)
	out = binary.LittleEndian.AppendUint32(out, checksum)
	return out
}

// Decode parses one frame starting at buf[0], returning the frame, the
// number of bytes consumed, and an error. frameAtomIDs is reused across
// the atoms decoded from this frame so intra-frame references resolve.
func Decode(buf []byte) (Frame, int, error) {
	if len(buf) < 4 {
		return Frame{}, 0, &perrors.ShortRead{Want: 4, Got: len(buf)}
	}
	if [4]byte(buf[:4]) != Magic {
		return Frame{}, 0, &perrors.CorruptFrame{Reason: "bad magic"}
	}
	off := 4

	if len(buf)-off < 8 {
		return Frame{}, 0, &perrors.ShortRead{Want: 8, Got: len(buf) - off}
	}
	txnID := binary.LittleEndian.Uint64(buf[off : off+8])
	off += 8

	atomCount, n, err := readUvarint(buf[off:])
	if err != nil {
		return Frame{}, 0, &perrors.CorruptFrame{Reason: "malformed atom_count"}
	}
	off += n

	frameAtomIDs := make(map[atom.ID]bool, atomCount)
	atoms := make([]atom.Atom, 0, atomCount)
	for i := uint64(0); i < atomCount; i++ {
		a, consumed, err := atom.Decode(buf[off:], frameAtomIDs)
		if err != nil {
			return Frame{}, 0, err
		}
		frameAtomIDs[a.ID] = true
		atoms = append(atoms, a)
		off += consumed
	}

	if len(buf)-off < 16 {
		return Frame{}, 0, &perrors.ShortRead{Want: 16, Got: len(buf) - off}
	}
	var newRoot atom.ID
	copy(newRoot[:], buf[off:off+16])
	off += 16

	if len(buf)-off < 4 {
		return Frame{}, 0, &perrors.ShortRead{Want: 4, Got: len(buf) - off}
	}
	wantChecksum := binary.LittleEndian.Uint32(buf[off : off+4])
	off += 4

	body := buf[4 : off-4]
	if !ValidateCRC32(body, wantChecksum) {
		return Frame{}, 0, &perrors.CorruptFrame{Reason: "checksum mismatch"}
	}

	return Frame{TxnID: txnID, Atoms: atoms, NewRoot: newRoot}, off, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, &perrors.CorruptFrame{Reason: "malformed varint"}
	}
	return v, n, nil
}
