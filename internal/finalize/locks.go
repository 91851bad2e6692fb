package finalize

import "sync"

// OwnerLocks serializes stock read-modify-write per owner.
type OwnerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOwnerLocks creates an empty lock set.
func NewOwnerLocks() *OwnerLocks {
	return &OwnerLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the owner's lock and returns the release func.
func (l *OwnerLocks) Lock(ownerID string) func() {
	l.mu.Lock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
