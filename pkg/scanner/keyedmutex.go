package scanner

import "sync"

// keyedMutex hands out one mutex per key so workers writing the same author
// or the same filepath can't interleave their read-modify-write cycles, while
// work on different keys proceeds in parallel. Entries are reference-counted
// and dropped on last unlock, so the map stays bounded by in-flight work.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

// lock acquires the mutex for key and returns the matching unlock function.
func (km *keyedMutex) lock(key string) func() {
	km.mu.Lock()
	entry, ok := km.locks[key]
	if !ok {
		entry = &keyedLock{}
		km.locks[key] = entry
	}
	entry.refs++
	km.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		km.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
