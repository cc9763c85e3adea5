package blockprovider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// CloudOptions configures a Cloud block provider.
type CloudOptions struct {
	FileOptions

	// LocalCacheDir holds decompressed pages fetched from the object
	// store, plus cache_mappings.json. Defaults to <dir>/cloud_cache.
	LocalCacheDir string

	// MemoryCacheBytes bounds the in-memory ByteLRU sitting in front of
	// the local FS cache.
	MemoryCacheBytes int64

	// UploadIntervalMS paces the background uploader's poll loop.
	UploadIntervalMS int

	// MaxUploadRetries and MaxFetchRetries bound the exponential backoff
	// used against the object store before surfacing RemoteUnavailable.
	MaxUploadRetries int
	MaxFetchRetries  int
}

func DefaultCloudOptions() CloudOptions {
	return CloudOptions{
		FileOptions:      DefaultFileOptions(),
		MemoryCacheBytes: 64 * 1024 * 1024,
		UploadIntervalMS: 1000,
		MaxUploadRetries: 5,
		MaxFetchRetries:  5,
	}
}

// Cloud is a block provider that stages appends to a local File, then
// asynchronously uploads completed WAL files to an ObjectStoreClient.
// Reads are served through a three-tier chain: in-memory LRU, local FS
// cache, object store — the same chain CloudClusterFileStorage's
// server-scoped page cache uses, sharing the cache_mappings.json format.
type Cloud struct {
	*File

	store   ObjectStoreClient
	opts    CloudOptions
	cacheDir string

	mem      *ByteLRU
	mappings *cacheMappings

	uploadMu      sync.Mutex
	uploaded      map[uint64]bool
	pendingUpload chan uint64

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewCloud(dir string, store ObjectStoreClient, opts CloudOptions) (*Cloud, error) {
	if opts.MemoryCacheBytes == 0 {
		opts.MemoryCacheBytes = DefaultCloudOptions().MemoryCacheBytes
	}
	if opts.UploadIntervalMS == 0 {
		opts.UploadIntervalMS = DefaultCloudOptions().UploadIntervalMS
	}
	if opts.MaxUploadRetries == 0 {
		opts.MaxUploadRetries = DefaultCloudOptions().MaxUploadRetries
	}
	if opts.MaxFetchRetries == 0 {
		opts.MaxFetchRetries = DefaultCloudOptions().MaxFetchRetries
	}
	if opts.LocalCacheDir == "" {
		opts.LocalCacheDir = filepath.Join(dir, "cloud_cache")
	}
	if err := os.MkdirAll(opts.LocalCacheDir, 0o755); err != nil {
		return nil, perrors.Wrap(err, "create local cloud cache directory")
	}

	staging, err := NewFile(dir, opts.FileOptions)
	if err != nil {
		return nil, err
	}

	mappings, err := loadCacheMappings(filepath.Join(opts.LocalCacheDir, "cache_mappings.json"))
	if err != nil {
		staging.Close()
		return nil, err
	}

	c := &Cloud{
		File:          staging,
		store:         store,
		opts:          opts,
		cacheDir:      opts.LocalCacheDir,
		mem:           NewByteLRU(opts.MemoryCacheBytes),
		mappings:      mappings,
		uploaded:      make(map[uint64]bool),
		pendingUpload: make(chan uint64, 1024),
		stopCh:        make(chan struct{}),
	}

	c.wg.Add(1)
	go c.uploadLoop()

	return c, nil
}

// Append delegates to the embedded File for local durability, then queues
// the owning WAL file for background upload once it is no longer active.
func (c *Cloud) Append(data []byte) (Location, error) {
	loc, err := c.File.Append(data)
	if err != nil {
		return loc, err
	}
	select {
	case c.pendingUpload <- loc.WALID:
	default:
	}
	return loc, nil
}

// GetReader serves local WAL-staged reads directly, and otherwise walks
// the cache chain: in-memory LRU, local FS cache, object store.
func (c *Cloud) GetReader(walID uint64, position int64) (ByteSource, error) {
	if !c.isUploaded(walID) {
		return c.File.GetReader(walID, position)
	}

	objectKey := fmt.Sprintf("wal_%020d.log", walID)

	if data, ok := c.mem.Get(objectKey); ok {
		return sliceReader(data, position), nil
	}

	if data, ok := c.readLocalCache(objectKey); ok {
		c.mem.Put(objectKey, data)
		return sliceReader(data, position), nil
	}

	data, err := c.fetchWithRetry(objectKey)
	if err != nil {
		return nil, err
	}

	c.mem.Put(objectKey, data)
	if err := c.writeLocalCache(objectKey, data); err != nil {
		return nil, err
	}
	if err := c.mappings.record(walID, 0, objectKey, int64(len(data))); err != nil {
		return nil, err
	}

	return sliceReader(data, position), nil
}

func sliceReader(data []byte, position int64) ByteSource {
	if position > int64(len(data)) {
		position = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[position:]))
}

func (c *Cloud) readLocalCache(objectKey string) ([]byte, bool) {
	data, err := os.ReadFile(filepath.Join(c.cacheDir, objectKey))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *Cloud) writeLocalCache(objectKey string, data []byte) error {
	path := filepath.Join(c.cacheDir, objectKey)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return perrors.Wrap(err, "write local cloud cache entry")
	}
	return os.Rename(tmp, path)
}

func (c *Cloud) fetchWithRetry(objectKey string) ([]byte, error) {
	ctx := context.Background()
	var lastErr error
	backoff := 10 * time.Millisecond
	for attempt := 0; attempt < c.opts.MaxFetchRetries; attempt++ {
		compressed, err := c.store.Get(ctx, objectKey)
		if err == nil {
			data, derr := snappy.Decode(nil, compressed)
			if derr != nil {
				return nil, perrors.Wrap(derr, "decompress cloud page")
			}
			return data, nil
		}
		lastErr = err
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, &perrors.RemoteUnavailable{Key: objectKey, Retries: c.opts.MaxFetchRetries, Err: lastErr}
}

func (c *Cloud) isUploaded(walID uint64) bool {
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()
	return c.uploaded[walID]
}

// uploadLoop drains pendingUpload, uploading each completed (non-active)
// WAL file exactly once, with exponential backoff on object store
// failure. It never uploads the currently-active WAL file, since that
// one may still receive appends.
func (c *Cloud) uploadLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(time.Duration(c.opts.UploadIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	pending := make(map[uint64]bool)
	for {
		select {
		case <-c.stopCh:
			return
		case id := <-c.pendingUpload:
			pending[id] = true
		case <-ticker.C:
			c.File.mu.Lock()
			active := c.File.activeID
			c.File.mu.Unlock()
			for id := range pending {
				if id == active {
					continue
				}
				if err := c.uploadOne(id); err == nil {
					delete(pending, id)
				}
			}
		}
	}
}

func (c *Cloud) uploadOne(walID uint64) error {
	data, err := os.ReadFile(c.walPath(walID))
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, data)

	ctx := context.Background()
	objectKey := fmt.Sprintf("wal_%020d.log", walID)
	var lastErr error
	backoff := 20 * time.Millisecond
	for attempt := 0; attempt < c.opts.MaxUploadRetries; attempt++ {
		if err := c.store.Put(ctx, objectKey, compressed); err == nil {
			c.uploadMu.Lock()
			c.uploaded[walID] = true
			c.uploadMu.Unlock()
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return &perrors.RemoteUnavailable{Key: objectKey, Retries: c.opts.MaxUploadRetries, Err: lastErr}
}

// Sync flushes the local staging file and blocks until every WAL file
// known at call time has either uploaded or exhausted its retry budget.
func (c *Cloud) Sync() error {
	if err := c.File.Sync(); err != nil {
		return err
	}

	ids, err := c.File.ListWALs()
	if err != nil {
		return err
	}
	c.File.mu.Lock()
	active := c.File.activeID
	c.File.mu.Unlock()

	for _, id := range ids {
		if id == active || c.isUploaded(id) {
			continue
		}
		if err := c.uploadOne(id); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cloud) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return c.File.Close()
}
