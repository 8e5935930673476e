package locking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"golang.org/x/sync/semaphore"
)

// MemoryLocker serialises work per key inside one process. Each key is
// backed by a weighted semaphore of size one that is dropped once nobody
// holds or waits for it.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

// NewMemoryLocker creates an empty MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is held, timeout elapses or ctx is done. A timeout
// returns shared.ErrLockTimeout; cancellation returns the context error.
func (l *MemoryLocker) Lock(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	kl := l.acquireRef(key)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := kl.sem.Acquire(waitCtx, 1); err != nil {
		l.releaseRef(key, kl)
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.Errorf(shared.ErrLockTimeout, "timed out after %s waiting for position %s", timeout, key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.sem.Release(1)
			l.releaseRef(key, kl)
		})
	}, nil
}

// Held returns the number of keys currently held or waited on
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *MemoryLocker) acquireRef(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *MemoryLocker) releaseRef(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
