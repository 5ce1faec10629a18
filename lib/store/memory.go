package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nozmo-king/chorum/decaymap"
)

func init() {
	Register("memory", MemoryFactory{})
}

// MemoryFactory builds the in-process store. It takes no parameters.
type MemoryFactory struct{}

func (MemoryFactory) Build(ctx context.Context, _ json.RawMessage) (Interface, error) {
	return NewMemoryStore(ctx), nil
}

func (MemoryFactory) Valid(json.RawMessage) error { return nil }

type memoryStore struct {
	store *decaymap.Impl[string, []byte]
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	if !m.store.Delete(key) {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	result, ok := m.store.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	return result, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, expiry time.Duration) error {
	m.store.Set(key, value, expiry)
	return nil
}

func (m *memoryStore) Add(_ context.Context, key string, value []byte, expiry time.Duration) error {
	if !m.store.Add(key, value, expiry) {
		return fmt.Errorf("%w: %q", ErrExists, key)
	}
	return nil
}

func (m *memoryStore) IsPersistent() bool { return false }

func (m *memoryStore) cleanupThread(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.store.Close()
			return
		case <-t.C:
			m.store.Cleanup()
		}
	}
}

// NewMemoryStore creates a simple in-memory store. This will not scale to
// multiple chorum instances. The store shuts down when ctx is done.
func NewMemoryStore(ctx context.Context) Interface {
	result := &memoryStore{
		store: decaymap.New[string, []byte](),
	}

	go result.cleanupThread(ctx)

	return result
}
