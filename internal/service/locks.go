package service

import (
	"sync"

	"github.com/google/uuid"
)

// itemLocks serializes work per item id. Entries are dropped once no
// goroutine holds or waits for them.
type itemLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[uuid.UUID]*itemLock)}
}

// Lock blocks until id is free and returns the matching unlock function.
func (l *itemLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &itemLock{}
		l.locks[id] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()
		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *itemLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
