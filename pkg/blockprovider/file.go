package blockprovider

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/DataDog/zstd"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// DefaultMaxWALFileSize bounds a single WAL file before a new one is
// rotated in, the same rotation strategy the teacher's HeapManager uses
// for document segments (`_%03d.data`), here applied to whole WAL files
// named by monotonic wal_id.
const DefaultMaxWALFileSize = 64 * 1024 * 1024

// File is a directory of WAL files named by monotonic wal_id; Append is
// buffered then fsynced on Sync.
type File struct {
	mu          sync.Mutex
	dir         string
	pageSize    int
	maxFileSize int64

	activeID     uint64
	activeFile   *os.File
	activeWriter *bufio.Writer
	activeSize   int64

	retainArchived bool
	lock           *advisoryLock
}

// FileOptions configures a File block provider.
type FileOptions struct {
	PageSize    int
	MaxFileSize int64

	// RetainArchived controls what ArchiveInactive does with a rotated-out
	// WAL file once a checkpoint no longer needs it uncompressed: true
	// replaces it with a zstd-compressed ".zst" sibling so cold WAL history
	// stays inspectable at lower disk cost; false leaves it untouched.
	RetainArchived bool
}

func DefaultFileOptions() FileOptions {
	return FileOptions{PageSize: 4096, MaxFileSize: DefaultMaxWALFileSize}
}

// NewFile opens (or creates) a File block provider rooted at dir, taking an
// advisory exclusive lock on the directory so a second process cannot open
// the same WAL concurrently for writing.
func NewFile(dir string, opts FileOptions) (*File, error) {
	if opts.PageSize == 0 {
		opts.PageSize = 4096
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = DefaultMaxWALFileSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.Wrap(err, "create wal directory")
	}

	lock, err := acquireAdvisoryLock(filepath.Join(dir, ".protobase.lock"))
	if err != nil {
		return nil, perrors.Wrap(err, "acquire wal directory lock")
	}

	f := &File{
		dir:            dir,
		pageSize:       opts.PageSize,
		maxFileSize:    opts.MaxFileSize,
		retainArchived: opts.RetainArchived,
		lock:           lock,
	}

	ids, err := f.listWALsLocked()
	if err != nil {
		lock.release()
		return nil, err
	}

	if len(ids) == 0 {
		if err := f.rotateLocked(1); err != nil {
			lock.release()
			return nil, err
		}
	} else {
		last := ids[len(ids)-1]
		if err := f.openActiveLocked(last); err != nil {
			lock.release()
			return nil, err
		}
	}

	return f, nil
}

func (f *File) walPath(id uint64) string {
	return filepath.Join(f.dir, fmt.Sprintf("wal_%020d.log", id))
}

func (f *File) openActiveLocked(id uint64) error {
	file, err := os.OpenFile(f.walPath(id), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return perrors.Wrap(err, "open active wal file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return perrors.Wrap(err, "stat active wal file")
	}
	f.activeID = id
	f.activeFile = file
	f.activeWriter = bufio.NewWriterSize(file, 64*1024)
	f.activeSize = info.Size()
	return nil
}

func (f *File) rotateLocked(id uint64) error {
	if f.activeFile != nil {
		if err := f.syncLocked(); err != nil {
			return err
		}
		f.activeFile.Close()
	}
	return f.openActiveLocked(id)
}

func (f *File) listWALsLocked() ([]uint64, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, perrors.Wrap(err, "list wal directory")
	}
	var ids []uint64
	for _, e := range entries {
		var id uint64
		if _, err := fmt.Sscanf(e.Name(), "wal_%020d.log", &id); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *File) Append(data []byte) (Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.activeSize+int64(len(data)) > f.maxFileSize && f.activeSize > 0 {
		if err := f.rotateLocked(f.activeID + 1); err != nil {
			return Location{}, err
		}
	}

	offset := f.activeSize
	n, err := f.activeWriter.Write(data)
	if err != nil {
		return Location{}, &perrors.IOFailure{Op: "append", Err: err}
	}
	f.activeSize += int64(n)

	return Location{WALID: f.activeID, Offset: offset, Length: int64(n)}, nil
}

func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syncLocked()
}

func (f *File) syncLocked() error {
	if f.activeWriter != nil {
		if err := f.activeWriter.Flush(); err != nil {
			return &perrors.IOFailure{Op: "flush", Err: err}
		}
	}
	if f.activeFile != nil {
		if err := f.activeFile.Sync(); err != nil {
			return &perrors.IOFailure{Op: "fsync", Err: err}
		}
	}
	return nil
}

func (f *File) GetReader(walID uint64, position int64) (ByteSource, error) {
	f.mu.Lock()
	// Flush so a reader of the active file sees bytes not yet on disk.
	if walID == f.activeID && f.activeWriter != nil {
		_ = f.activeWriter.Flush()
	}
	f.mu.Unlock()

	file, err := os.Open(f.walPath(walID))
	if err != nil {
		return nil, perrors.Wrap(err, "open wal file for read")
	}
	if _, err := file.Seek(position, io.SeekStart); err != nil {
		file.Close()
		return nil, perrors.Wrap(err, "seek wal file")
	}
	return file, nil
}

func (f *File) ListWALs() ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listWALsLocked()
}

func (f *File) PageSize() int { return f.pageSize }

// ArchiveInactive zstd-compresses every rotated-out WAL file (every id below
// the active one) that isn't already archived, replacing the plaintext file
// with a ".zst" sibling when RetainArchived is set. A caller (typically a
// checkpoint routine, once it has confirmed no live snapshot still reads
// these bytes) invokes this explicitly; File never archives on its own.
// Returns the number of files archived.
func (f *File) ArchiveInactive() (int, error) {
	if !f.retainArchived {
		return 0, nil
	}

	f.mu.Lock()
	activeID := f.activeID
	ids, err := f.listWALsLocked()
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, id := range ids {
		if id >= activeID {
			continue
		}
		path := f.walPath(id)
		archivePath := path + ".zst"
		if _, err := os.Stat(archivePath); err == nil {
			continue
		}
		plain, err := os.ReadFile(path)
		if err != nil {
			return archived, perrors.Wrap(err, "read wal file for archival")
		}
		compressed, err := zstd.Compress(nil, plain)
		if err != nil {
			return archived, perrors.Wrap(err, "compress wal file for archival")
		}
		if err := os.WriteFile(archivePath, compressed, 0o644); err != nil {
			return archived, perrors.Wrap(err, "write archived wal file")
		}
		if err := os.Remove(path); err != nil {
			return archived, perrors.Wrap(err, "remove archived wal plaintext")
		}
		archived++
	}
	return archived, nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.syncLocked()
	if f.activeFile != nil {
		if cerr := f.activeFile.Close(); err == nil {
			err = cerr
		}
	}
	f.lock.release()
	return err
}
