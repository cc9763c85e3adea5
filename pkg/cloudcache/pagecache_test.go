package cloudcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/protobase/protobase/pkg/blockprovider"
)

func TestGetPageFallsThroughToCloudThenCachesLocally(t *testing.T) {
	dir := t.TempDir()
	store := blockprovider.NewInMemoryObjectStore()
	cloudOpts := blockprovider.DefaultCloudOptions()
	cloudOpts.UploadIntervalMS = 10
	cloudOpts.MaxFileSize = 16 // force rotation so wal_1 becomes eligible for upload
	cloudOpts.LocalCacheDir = filepath.Join(dir, "cloud_cache")

	cloud, err := blockprovider.NewCloud(dir, store, cloudOpts)
	if err != nil {
		t.Fatalf("NewCloud: %v", err)
	}
	defer cloud.Close()

	loc, err := cloud.Append([]byte("hello from a peer"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := cloud.Append([]byte("more data to force rotation past sixteen bytes")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Sync uploads every non-active WAL file synchronously, so wal_1 is
	// guaranteed to be in the object store once this returns.
	if err := cloud.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	pc, err := Open(cloud, Options{ServerID: "node1", BaseDir: filepath.Join(dir, "cloud_page_cache")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	data, err := pc.GetPage(loc.WALID, loc.Offset)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if string(data) != "hello from a peer" {
		t.Fatalf("got %q, want %q", string(data), "hello from a peer")
	}

	mappingsPath := filepath.Join(dir, "cloud_page_cache", "server_node1", "cache_mappings.json")
	if _, err := os.Stat(mappingsPath); err != nil {
		t.Fatalf("cache_mappings.json: %v", err)
	}

	// The page is now also held in this server's on-disk tier, readable
	// without the in-memory tier or the wrapped Cloud provider.
	key := pageKey(loc.WALID, loc.Offset)
	pc.mem = blockprovider.NewByteLRU(0) // drop the in-memory tier, force the on-disk tier
	data2, ok := pc.readLocal(key)
	if !ok {
		t.Fatalf("expected on-disk cloud page cache entry for %q", key)
	}
	if string(data2) != "hello from a peer" {
		t.Fatalf("got %q, want %q", string(data2), "hello from a peer")
	}
}
