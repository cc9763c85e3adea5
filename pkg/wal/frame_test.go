package wal

import (
	"testing"

	"github.com/protobase/protobase/pkg/atom"
)

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	a := atom.New(atom.TagI64, []byte{1, 0, 0, 0, 0, 0, 0, 0}, nil)
	root := atom.New(atom.TagRootMap, nil, []atom.ID{a.ID})

	f := Frame{TxnID: 42, Atoms: []atom.Atom{a}, NewRoot: root.ID}
	encoded := Encode(f)

	decoded, consumed, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Errorf("consumed %d, want %d", consumed, len(encoded))
	}
	if decoded.TxnID != f.TxnID {
		t.Errorf("TxnID = %d, want %d", decoded.TxnID, f.TxnID)
	}
	if decoded.NewRoot != f.NewRoot {
		t.Errorf("NewRoot mismatch")
	}
	if len(decoded.Atoms) != 1 || decoded.Atoms[0].ID != a.ID {
		t.Errorf("atoms mismatch: %+v", decoded.Atoms)
	}
}

func TestFrameDecodeRejectsBadMagic(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestFrameDecodeRejectsChecksumMismatch(t *testing.T) {
	root := atom.New(atom.TagRootMap, nil, nil)
	f := Frame{TxnID: 1, NewRoot: root.ID}
	encoded := Encode(f)
	encoded[len(encoded)-1] ^= 0xFF // flip a checksum byte

	if _, _, err := Decode(encoded); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}

func TestFrameDecodeShortReadOnTruncation(t *testing.T) {
	root := atom.New(atom.TagRootMap, nil, nil)
	f := Frame{TxnID: 1, NewRoot: root.ID}
	encoded := Encode(f)

	if _, _, err := Decode(encoded[:len(encoded)-2]); err == nil {
		t.Fatal("expected short read error on truncated frame")
	}
}
