// Package decaymap is an in-process key/value map whose entries decay after
// a time-to-live. It backs the memory store.
package decaymap

import (
	"sync"
	"time"
)

func Zilch[T any]() T {
	var zero T
	return zero
}

// Impl is a lazy key->value map guarded by a mutex. Expired values are
// invisible to readers and pruned in the background. An entry stored with a
// non-positive TTL never expires.
type Impl[K comparable, V any] struct {
	data map[K]entry[V]

	// deleteCh receives decay-deletion requests from readers.
	deleteCh chan deleteReq[K]
	stopCh   chan struct{}
	wg       sync.WaitGroup
	lock     sync.RWMutex
}

type entry[V any] struct {
	value  V
	expiry time.Time // zero means forever
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// deleteReq removes key only if its expiry still matches the one the reader
// observed, so a concurrent Set is never undone.
type deleteReq[K comparable] struct {
	key    K
	expiry time.Time
}

// New creates a new DecayMap of key type K and value type V.
func New[K comparable, V any]() *Impl[K, V] {
	m := &Impl[K, V]{
		data:     make(map[K]entry[V]),
		deleteCh: make(chan deleteReq[K], 1024),
		stopCh:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.cleanupWorker()
	return m
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Delete a value from the DecayMap by key. Returns false if nothing live was
// stored under key.
func (m *Impl[K, V]) Delete(key K) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	e, ok := m.data[key]
	if !ok {
		return false
	}
	delete(m.data, key)
	return !e.expired(time.Now())
}

// Get gets a value from the DecayMap by key.
func (m *Impl[K, V]) Get(key K) (V, bool) {
	m.lock.RLock()
	e, ok := m.data[key]
	m.lock.RUnlock()

	if !ok {
		return Zilch[V](), false
	}

	if e.expired(time.Now()) {
		select {
		case m.deleteCh <- deleteReq[K]{key: key, expiry: e.expiry}:
		default:
			// Channel full: a later Cleanup or Get will retry.
		}

		return Zilch[V](), false
	}

	return e.value, true
}

// Set stores value under key, replacing whatever was there.
func (m *Impl[K, V]) Set(key K, value V, ttl time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.data[key] = entry[V]{
		value:  value,
		expiry: expiryFor(ttl),
	}
}

// Add stores value under key only if no live entry exists. It reports
// whether the value was stored. The check and the write happen under one
// lock, so exactly one of any number of concurrent Adds wins.
func (m *Impl[K, V]) Add(key K, value V, ttl time.Duration) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	if e, ok := m.data[key]; ok && !e.expired(time.Now()) {
		return false
	}

	m.data[key] = entry[V]{
		value:  value,
		expiry: expiryFor(ttl),
	}
	return true
}

// Cleanup removes all expired entries from the DecayMap.
func (m *Impl[K, V]) Cleanup() {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := time.Now()
	for key, e := range m.data {
		if e.expired(now) {
			delete(m.data, key)
		}
	}
}

// Len returns the number of entries, expired or not, in the DecayMap.
func (m *Impl[K, V]) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.data)
}

// Close stops the background cleanup worker.
func (m *Impl[K, V]) Close() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Impl[K, V]) cleanupWorker() {
	defer m.wg.Done()
	batch := make([]deleteReq[K], 0, 64)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		m.applyDeletes(batch)
		batch = batch[:0]
	}

	for {
		select {
		case req := <-m.deleteCh:
			batch = append(batch, req)
		case <-ticker.C:
			flush()
		case <-m.stopCh:
			for {
				select {
				case req := <-m.deleteCh:
					batch = append(batch, req)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (m *Impl[K, V]) applyDeletes(batch []deleteReq[K]) {
	now := time.Now()
	m.lock.Lock()
	for _, req := range batch {
		e, ok := m.data[req.key]
		if !ok {
			continue
		}
		if e.expiry.Equal(req.expiry) && e.expired(now) {
			delete(m.data, req.key)
		}
	}
	m.lock.Unlock()
}
