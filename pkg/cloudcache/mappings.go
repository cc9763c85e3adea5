// Package cloudcache implements CloudClusterFileStorage's server-scoped page
// cache: a cache_mappings.json-backed directory, namespaced by server_id,
// that sits in front of a wrapped blockprovider.Cloud so peers in a Raft
// group can serve each other's page requests without touching the object
// store on every hit.
package cloudcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// mappingFile is the same on-disk shape blockprovider.Cloud uses, so a
// server's cloud_page_cache directory and its wrapped Cloud's cloud_cache
// directory read as the same format even though the two packages don't
// share the Go type.
type mappingFile struct {
	Version int             `json:"version"`
	Entries []mappingRecord `json:"entries"`
}

type mappingRecord struct {
	Page   string `json:"page"`
	Object string `json:"object"`
	Bytes  int64  `json:"bytes"`
}

type mappings struct {
	mu      sync.Mutex
	path    string
	entries map[string]mappingRecord
}

func loadMappings(path string) (*mappings, error) {
	m := &mappings{path: path, entries: make(map[string]mappingRecord)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, perrors.Wrap(err, "read cache_mappings.json")
	}

	var file mappingFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, perrors.Wrap(err, "parse cache_mappings.json")
	}
	for _, e := range file.Entries {
		m.entries[e.Page] = e
	}
	return m, nil
}

func pageKey(walID uint64, offset int64) string {
	return fmt.Sprintf("%d/%d", walID, offset)
}

func (m *mappings) lookup(walID uint64, offset int64) (mappingRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.entries[pageKey(walID, offset)]
	return rec, ok
}

func (m *mappings) record(walID uint64, offset int64, object string, bytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page := pageKey(walID, offset)
	m.entries[page] = mappingRecord{Page: page, Object: object, Bytes: bytes}
	return m.persistLocked()
}

func (m *mappings) persistLocked() error {
	file := mappingFile{Version: 1}
	for _, e := range m.entries {
		file.Entries = append(file.Entries, e)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return perrors.Wrap(err, "marshal cache_mappings.json")
	}

	tmp := m.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return perrors.Wrap(err, "create cache directory")
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return perrors.Wrap(err, "write cache_mappings.json.tmp")
	}
	return os.Rename(tmp, m.path)
}
