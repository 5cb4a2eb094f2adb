package backend

import "sync"

// mailboxLocks serializes operations per mailbox path. The protocol
// forbids interleaving commands against the same selected mailbox on
// one connection; different mailboxes proceed concurrently.
type mailboxLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the mutex for path and returns its release func. The
// caller defers the release so the lock is dropped on every exit
// path.
func (l *mailboxLocks) lock(path string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	mu, ok := l.m[path]
	if !ok {
		mu = &sync.Mutex{}
		l.m[path] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
