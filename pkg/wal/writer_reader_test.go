package wal

import (
	"testing"

	"github.com/protobase/protobase/pkg/atom"
	"github.com/protobase/protobase/pkg/blockprovider"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	provider, err := blockprovider.NewFile(dir, blockprovider.DefaultFileOptions())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer provider.Close()

	opts := DefaultOptions()
	opts.SyncPolicy = SyncEveryWrite
	w := NewWriter(provider, opts)
	defer w.Close()

	var wantRoots []atom.ID
	for i := uint64(0); i < 5; i++ {
		a := atom.New(atom.TagI64, []byte{byte(i), 0, 0, 0, 0, 0, 0, 0}, nil)
		root := atom.New(atom.TagRootMap, nil, []atom.ID{a.ID})
		if _, err := w.WriteFrame(Frame{TxnID: i, Atoms: []atom.Atom{a}, NewRoot: root.ID}); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
		wantRoots = append(wantRoots, root.ID)
	}

	r := NewReader(provider)
	frames, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("got %d frames, want 5", len(frames))
	}
	for i, f := range frames {
		if f.TxnID != uint64(i) {
			t.Errorf("frame %d: TxnID = %d, want %d", i, f.TxnID, i)
		}
		if f.NewRoot != wantRoots[i] {
			t.Errorf("frame %d: NewRoot mismatch", i)
		}
	}
}

func TestReaderDropsTornTailFrame(t *testing.T) {
	dir := t.TempDir()
	provider, err := blockprovider.NewFile(dir, blockprovider.DefaultFileOptions())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer provider.Close()

	w := NewWriter(provider, DefaultOptions())
	root := atom.New(atom.TagRootMap, nil, nil)
	if _, err := w.WriteFrame(Frame{TxnID: 1, NewRoot: root.ID}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	w.Sync()

	// Simulate a crash mid-append by appending a truncated frame directly.
	badFrame := Encode(Frame{TxnID: 2, NewRoot: root.ID})
	if _, err := provider.Append(badFrame[:len(badFrame)-3]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	provider.Sync()

	r := NewReader(provider)
	frames, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (torn tail dropped)", len(frames))
	}
}
