package gameserver

import "sync"

// keyedLock hands out at most one holder per key. Entries are dropped on release so the
// map only holds keys that are currently locked.
type keyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedLock() *keyedLock {
	return &keyedLock{held: make(map[string]struct{})}
}

// TryLock acquires key without waiting.
//
// Postcondition: when ok is true the caller must call release exactly once.
func (l *keyedLock) TryLock(key string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}
