package blockprovider

import (
	"context"
	"sync"

	perrors "github.com/protobase/protobase/pkg/errors"
)

// ObjectStoreClient is the S3-compatible surface the Cloud provider needs.
// No pack repo carries a concrete S3 SDK dependency, so ProtoBase defines
// the narrow interface it needs and ships an in-process fake for tests and
// for embedding hosts that want to wire a real client (aws-sdk-go-v2,
// minio-go, ...) without ProtoBase depending on one directly.
type ObjectStoreClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// InMemoryObjectStore is a trivial ObjectStoreClient used by tests and by
// MemoryStorage-adjacent setups that still want to exercise the Cloud
// provider's cache and retry plumbing without a real network dependency.
type InMemoryObjectStore struct {
	mu   sync.RWMutex
	objs map[string][]byte

	// Unavailable, when true, makes every Get/Put fail, simulating an
	// outage for §8 scenario S6 (cloud fallback / RemoteUnavailable).
	Unavailable bool
}

func NewInMemoryObjectStore() *InMemoryObjectStore {
	return &InMemoryObjectStore{objs: make(map[string][]byte)}
}

func (s *InMemoryObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, perrors.New("object store unavailable")
	}
	data, ok := s.objs[key]
	if !ok {
		return nil, perrors.Newf("object %q not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *InMemoryObjectStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return perrors.New("object store unavailable")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objs[key] = cp
	return nil
}

func (s *InMemoryObjectStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unavailable {
		return nil, perrors.New("object store unavailable")
	}
	var out []string
	for k := range s.objs {
		if len(prefix) == 0 || (len(k) >= len(prefix) && k[:len(prefix)] == prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
