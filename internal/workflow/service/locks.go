package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// appLocks serializes mutations per application. Database row locks protect
// cross-process writes; this keeps same-process webhook replays from even
// reaching the database concurrently, so allocations apply in call order.
type appLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*appLock
}

type appLock struct {
	mu   sync.Mutex
	refs int
}

func newAppLocks() *appLocks {
	return &appLocks{locks: make(map[snowflake.ID]*appLock)}
}

// Acquire blocks until the application's lock is held and returns the
// release function.
func (l *appLocks) Acquire(id snowflake.ID) func() {
	l.mu.Lock()
	entry := l.locks[id]
	if entry == nil {
		entry = &appLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
