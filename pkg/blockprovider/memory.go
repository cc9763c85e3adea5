package blockprovider

import (
	"bytes"
	"io"
	"sync"
)

// Memory is a RAM-backed block provider, used for tests and for
// MemoryStorage. Every Append lands in WAL id 1; Sync is a no-op since
// nothing here is durable by construction.
type Memory struct {
	mu       sync.RWMutex
	buf      []byte
	pageSize int
}

func NewMemory() *Memory {
	return &Memory{pageSize: 4096}
}

func (m *Memory) Append(data []byte) (Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offset := int64(len(m.buf))
	m.buf = append(m.buf, data...)
	return Location{WALID: 1, Offset: offset, Length: int64(len(data))}, nil
}

func (m *Memory) Sync() error { return nil }

func (m *Memory) GetReader(walID uint64, position int64) (ByteSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if walID != 1 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	if position > int64(len(m.buf)) {
		position = int64(len(m.buf))
	}
	return io.NopCloser(bytes.NewReader(m.buf[position:])), nil
}

func (m *Memory) ListWALs() ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.buf) == 0 {
		return nil, nil
	}
	return []uint64{1}, nil
}

func (m *Memory) PageSize() int { return m.pageSize }

func (m *Memory) Close() error { return nil }
