package blockprovider

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// cacheMappingFile is the on-disk JSON shape from §6: {"version":1,
// "entries":[{"page":"<wal_id>/<offset>","object":"<key>","bytes":N}]}.
type cacheMappingFile struct {
	Version int                  `json:"version"`
	Entries []cacheMappingRecord `json:"entries"`
}

type cacheMappingRecord struct {
	Page   string `json:"page"`
	Object string `json:"object"`
	Bytes  int64  `json:"bytes"`
}

// cacheMappings tracks, and durably persists, the logical-page -> cached
// object-key mapping for a Cloud or CloudCluster provider's local cache
// directory.
type cacheMappings struct {
	mu      sync.Mutex
	path    string
	entries map[string]cacheMappingRecord // page -> record
}

func loadCacheMappings(path string) (*cacheMappings, error) {
	cm := &cacheMappings{path: path, entries: make(map[string]cacheMappingRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cm, nil
	}
	if err != nil {
		return nil, perrors.Wrap(err, "read cache_mappings.json")
	}

	var file cacheMappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, perrors.Wrap(err, "parse cache_mappings.json")
	}
	for _, e := range file.Entries {
		cm.entries[e.Page] = e
	}
	return cm, nil
}

func pageKey(walID uint64, offset int64) string {
	return fmt.Sprintf("%d/%d", walID, offset)
}

func (cm *cacheMappings) lookup(walID uint64, offset int64) (cacheMappingRecord, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	rec, ok := cm.entries[pageKey(walID, offset)]
	return rec, ok
}

func (cm *cacheMappings) record(walID uint64, offset int64, object string, bytes int64) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	page := pageKey(walID, offset)
	cm.entries[page] = cacheMappingRecord{Page: page, Object: object, Bytes: bytes}
	return cm.persistLocked()
}

func (cm *cacheMappings) persistLocked() error {
	file := cacheMappingFile{Version: 1}
	for _, e := range cm.entries {
		file.Entries = append(file.Entries, e)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return perrors.Wrap(err, "marshal cache_mappings.json")
	}

	tmp := cm.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return perrors.Wrap(err, "create cache directory")
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return perrors.Wrap(err, "write cache_mappings.json.tmp")
	}
	return os.Rename(tmp, cm.path)
}
