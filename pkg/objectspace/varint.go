package objectspace

import (
	"encoding/binary"

	perrors "github.com/protobase/protobase/pkg/errors"
)

func appendVarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readVarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, 0, &perrors.CorruptAtom{Reason: "malformed varint in root map"}
	}
	return v, n, nil
}
