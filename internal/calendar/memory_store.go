package calendar

import (
	"context"
	"sync"
)

// MemoryStore implements Store in process memory. It keeps the serialized
// bytes rather than the structs so that it exercises the same encoding as
// the durable backends and can be fed corrupt content.
type MemoryStore struct {
	mu    sync.RWMutex
	data  []byte
	saves int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Backend returns the backend name used in metrics
func (ms *MemoryStore) Backend() string {
	return "memory"
}

// Load decodes the stored bytes
func (ms *MemoryStore) Load(ctx context.Context) (*CacheFile, error) {
	if err := ctx.Err(); err != nil {
		return NewCacheFile(), err
	}

	ms.mu.RLock()
	data := ms.data
	ms.mu.RUnlock()

	cf, err := decodeCacheFile(data)
	if err != nil {
		StoreCorruptions.WithLabelValues(ms.Backend()).Inc()
		ms.mu.Lock()
		ms.data = nil
		ms.mu.Unlock()
		return NewCacheFile(), &CorruptStoreError{Path: "memory", Err: err}
	}
	return cf, nil
}

// Save replaces the stored bytes
func (ms *MemoryStore) Save(ctx context.Context, cf *CacheFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeCacheFile(cf)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	ms.data = data
	ms.saves++
	ms.mu.Unlock()
	return nil
}

// SetRaw replaces the stored bytes verbatim
func (ms *MemoryStore) SetRaw(data []byte) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data = append([]byte(nil), data...)
}

// Raw returns a copy of the stored bytes
func (ms *MemoryStore) Raw() []byte {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return append([]byte(nil), ms.data...)
}

// Saves returns how many times Save succeeded
func (ms *MemoryStore) Saves() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.saves
}
