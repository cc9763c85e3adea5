package blockprovider

import (
	"os"
	"testing"
)

func TestFileArchiveInactiveCompressesRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultFileOptions()
	opts.MaxFileSize = 8 // force rotation almost every append
	opts.RetainArchived = true

	f, err := NewFile(dir, opts)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	defer f.Close()

	for i := 0; i < 5; i++ {
		if _, err := f.Append([]byte("some wal frame bytes")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	archived, err := f.ArchiveInactive()
	if err != nil {
		t.Fatalf("ArchiveInactive: %v", err)
	}
	if archived == 0 {
		t.Fatalf("expected at least one rotated-out wal file to be archived")
	}

	ids, err := f.ListWALs()
	if err != nil {
		t.Fatalf("ListWALs: %v", err)
	}
	active := ids[len(ids)-1]
	for _, id := range ids {
		if id == active {
			continue
		}
		plain := f.walPath(id)
		if _, err := os.Stat(plain); !os.IsNotExist(err) {
			t.Errorf("expected plaintext wal file for id %d to be removed after archival", id)
		}
		if _, err := os.Stat(plain + ".zst"); err != nil {
			t.Errorf("expected archived wal file for id %d: %v", id, err)
		}
	}

	// Archiving again is a no-op, not an error, since the .zst siblings
	// already exist.
	second, err := f.ArchiveInactive()
	if err != nil {
		t.Fatalf("second ArchiveInactive: %v", err)
	}
	if second != 0 {
		t.Fatalf("expected second archival pass to find nothing new, got %d", second)
	}
}
