package reconcile

import (
	"sync"

	"github.com/plansync/plansync/internal/types"
)

// ScopeLock serializes reconciliation runs per scope within a single
// process. Two runs over different scopes proceed concurrently; two runs
// over the same (iteration, epic) pair queue behind each other. Cross
// process coordination is out of scope: concurrent writers from separate
// processes resolve last-writer-wins at the stores.
type ScopeLock struct {
	mu    sync.Mutex
	locks map[types.Scope]*sync.Mutex
}

// NewScopeLock returns an empty lock table.
func NewScopeLock() *ScopeLock {
	return &ScopeLock{locks: make(map[types.Scope]*sync.Mutex)}
}

// Acquire blocks until the scope is free and returns a release function.
// The caller must invoke release exactly once, typically via defer.
func (l *ScopeLock) Acquire(scope types.Scope) (release func()) {
	l.mu.Lock()
	m, ok := l.locks[scope]
	if !ok {
		m = &sync.Mutex{}
		l.locks[scope] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
