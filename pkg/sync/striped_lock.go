package sync

import (
	"context"
	base "sync"
	"time"
)

const (
	hashEntriesPerLock = 200

	lockPollInterval = 5 * time.Millisecond
)

// StripedLock is a partitioned locking mechanism that consistently maps a key
// space to a set of locks. This provides concurrent data access while also
// limiting the total memory footprint.
type StripedLock struct {
	locks    []base.RWMutex
	hashRing *ring
}

// NewStripedLock returns a new StripedLock with a static number of stripes.
func NewStripedLock(stripes uint) *StripedLock {
	return &StripedLock{
		locks:    make([]base.RWMutex, stripes),
		hashRing: newRing("lock", stripes, hashEntriesPerLock),
	}
}

// Get gets the lock for a key
func (l *StripedLock) Get(key []byte) *base.RWMutex {
	return &l.locks[l.hashRing.shard(key)]
}

// LockContext acquires the write lock for a key, giving up with ctx's error
// once ctx is done. The returned func releases the lock.
func (l *StripedLock) LockContext(ctx context.Context, key []byte) (func(), error) {
	mu := l.Get(key)

	for {
		if mu.TryLock() {
			return mu.Unlock, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
