package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/canopy/pkg/ports"
)

// lockEntry holds the lock token and the reference count.
type lockEntry struct {
	token chan struct{} // holds one value while unlocked
	refs  int
}

// Locker implements ports.Locker within a single process.
// It uses reference counting to garbage collect unused locks.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocker creates an in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{token: make(chan struct{}, 1)}
		entry.token <- struct{}{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// Lock blocks until key is free or ctx is done. The ttl is ignored: an
// in-process holder cannot disappear without releasing.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	entry := l.acquire(key)
	select {
	case <-entry.token:
	case <-ctx.Done():
		l.release(key)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			entry.token <- struct{}{}
			l.release(key)
		})
		return nil
	}, nil
}
