package cloudcache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/DataDog/zstd"

	"github.com/protobase/protobase/pkg/blockprovider"
	perrors "github.com/protobase/protobase/pkg/errors"
)

// Options configures a PageCache.
type Options struct {
	// ServerID namespaces this node's cache directory so peers in the same
	// cluster never contaminate each other's cached pages.
	ServerID string

	// BaseDir is the parent of the server-scoped directory, default
	// cloud_page_cache/server_<id> under it.
	BaseDir string

	// MemoryCacheBytes bounds the in-memory ByteLRU sitting in front of
	// this server's on-disk cache directory.
	MemoryCacheBytes int64
}

func DefaultOptions(serverID string) Options {
	return Options{
		ServerID:         serverID,
		BaseDir:          "cloud_page_cache",
		MemoryCacheBytes: 32 * 1024 * 1024,
	}
}

// PageCache serves incoming peer page requests for a CloudClusterFileStorage
// node: in-memory LRU, then this server's own on-disk directory, then the
// wrapped Cloud provider's own mem -> local FS -> object store chain,
// caching downstream on every hit from upstream per §4.8.
type PageCache struct {
	cloud *blockprovider.Cloud
	dir   string

	mem      *blockprovider.ByteLRU
	mappings *mappings
}

func Open(cloud *blockprovider.Cloud, opts Options) (*PageCache, error) {
	if opts.MemoryCacheBytes == 0 {
		opts.MemoryCacheBytes = DefaultOptions(opts.ServerID).MemoryCacheBytes
	}
	if opts.BaseDir == "" {
		opts.BaseDir = DefaultOptions(opts.ServerID).BaseDir
	}

	dir := filepath.Join(opts.BaseDir, fmt.Sprintf("server_%s", opts.ServerID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.Wrap(err, "create cloud page cache directory")
	}

	m, err := loadMappings(filepath.Join(dir, "cache_mappings.json"))
	if err != nil {
		return nil, err
	}

	return &PageCache{
		cloud:    cloud,
		dir:      dir,
		mem:      blockprovider.NewByteLRU(opts.MemoryCacheBytes),
		mappings: m,
	}, nil
}

// GetPage serves a peer's page request for (walID, position): in-memory
// LRU, then this server's on-disk directory, then the wrapped Cloud's own
// chain. A hit at any lower tier is cached at every tier above it.
func (pc *PageCache) GetPage(walID uint64, position int64) ([]byte, error) {
	key := pageKey(walID, position)

	if data, ok := pc.mem.Get(key); ok {
		return data, nil
	}

	if data, ok := pc.readLocal(key); ok {
		pc.mem.Put(key, data)
		return data, nil
	}

	src, err := pc.cloud.GetReader(walID, position)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := readAll(src)
	if err != nil {
		return nil, perrors.Wrap(err, "read page from wrapped cloud provider")
	}

	pc.mem.Put(key, data)
	if err := pc.writeLocal(key, data); err != nil {
		return nil, err
	}
	if err := pc.mappings.record(walID, position, key, int64(len(data))); err != nil {
		return nil, err
	}
	return data, nil
}

// readLocal/writeLocal use zstd rather than the wrapped Cloud provider's
// snappy: this tier is disk-resident and served repeatedly to peers, so
// spending more CPU for a better compression ratio pays off, unlike the
// Cloud provider's own latency-sensitive upload path.
func (pc *PageCache) readLocal(key string) ([]byte, bool) {
	compressed, err := os.ReadFile(pc.localPath(key))
	if err != nil {
		return nil, false
	}
	data, err := zstd.Decompress(nil, compressed)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (pc *PageCache) writeLocal(key string, data []byte) error {
	compressed, err := zstd.Compress(nil, data)
	if err != nil {
		return perrors.Wrap(err, "compress cloud page cache entry")
	}
	path := pc.localPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return perrors.Wrap(err, "write cloud page cache entry")
	}
	return os.Rename(tmp, path)
}

func (pc *PageCache) localPath(key string) string {
	return filepath.Join(pc.dir, fmt.Sprintf("page_%s.bin", sanitizeKey(key)))
}

func sanitizeKey(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			out[i] = '_'
		} else {
			out[i] = key[i]
		}
	}
	return string(out)
}

func readAll(src blockprovider.ByteSource) ([]byte, error) {
	var buf []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := src.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf, nil
			}
			return buf, err
		}
	}
}
