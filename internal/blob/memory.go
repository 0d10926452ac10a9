package blob

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Frijidia/Arkiva-sub000/internal/common"
)

// MemoryStore is a thread-safe in-memory Store used in tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailPut, FailGet and FailDelete force the corresponding operation to
	// fail, for exercising partial-failure paths.
	FailPut    bool
	FailGet    bool
	FailDelete bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) (*PutResult, error) {
	if m.FailPut {
		return nil, fmt.Errorf("%w: put %s: forced failure", common.ErrStorage, key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = cp
	m.mu.Unlock()

	return &PutResult{Key: key, Size: int64(len(data)), Location: "mem://" + key}, nil
}

func (m *MemoryStore) PutReader(ctx context.Context, key string, r io.ReadSeeker, size int64) (*PutResult, error) {
	if m.FailPut {
		return nil, fmt.Errorf("%w: put %s: forced failure", common.ErrStorage, key)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: put %s: %v", common.ErrStorage, key, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: put %s: %v", common.ErrStorage, key, err)
	}
	return m.Put(ctx, key, data)
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.FailGet {
		return nil, fmt.Errorf("%w: get %s: forced failure", common.ErrStorage, key)
	}
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: get %s: %w", common.ErrStorage, key, common.ErrNotFound)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if m.FailDelete {
		return fmt.Errorf("%w: delete %s: forced failure", common.ErrStorage, key)
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: presign %s: %w", common.ErrStorage, key, common.ErrNotFound)
	}
	return fmt.Sprintf("mem://%s?expires=%s", key, ttl), nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}
