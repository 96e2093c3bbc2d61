package services

import "sync"

// caseLocks serializes mutations per case. Operations on different cases run
// in parallel; within one case, plan generation, status updates, overrides,
// and recalculation never interleave.
type caseLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newCaseLocks() *caseLocks {
	return &caseLocks{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for the given case and returns the unlock func.
func (l *caseLocks) Lock(caseID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[caseID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[caseID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
