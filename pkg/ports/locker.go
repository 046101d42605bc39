package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a lock.
type UnlockFunc func(ctx context.Context) error

// Locker defines the interface for exclusive resource control.
// Tasks declaring the same exclusive resource never run at the same time,
// within one process or across processes sharing a backend.
type Locker interface {
	// Lock acquires the lock for key (e.g., "adb-device").
	// It blocks until the lock is acquired or the context is canceled.
	// The TTL bounds how long a crashed holder keeps the lock (implementation specific).
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
