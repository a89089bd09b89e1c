package curve

import "sync"

// keyLock serializes work per key without a global critical section.
// Entries are reference-counted and removed once the last holder releases,
// so the map does not grow with the number of curves ever traded.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for key and returns the release function.
func (k *keyLock) lock(key string) func() {
	k.mu.Lock()
	e, exists := k.locks[key]
	if !exists {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
