package schedule

import "sync"

// orgLocks hands out one mutex per organization. Entries are reference
// counted and dropped when no caller holds or waits on them.
type orgLocks struct {
	mu sync.Mutex
	m  map[string]*orgLock
}

type orgLock struct {
	mu   sync.Mutex
	refs int
}

func newOrgLocks() *orgLocks {
	return &orgLocks{m: make(map[string]*orgLock)}
}

// lock blocks until the organization's critical section is free and returns
// the function that releases it.
func (l *orgLocks) lock(orgID string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.m[orgID]
	if !ok {
		e = &orgLock{}
		l.m[orgID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.m, orgID)
		}
		l.mu.Unlock()
	}
}

func (l *orgLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
