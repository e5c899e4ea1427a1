package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripedLock_HappyPath(t *testing.T) {
	workerCount := 256
	operationCount := 10000

	l := NewStripedLock(4)

	var workerWg sync.WaitGroup
	startChan := make(chan struct{})
	data := make([]int, workerCount)

	for i := 0; i < workerCount; i++ {
		workerWg.Add(1)

		go func(workerID int) {
			defer workerWg.Done()

			var opWg sync.WaitGroup
			key := []byte(fmt.Sprintf("worker%d", workerID))
			for j := 0; j < operationCount; j++ {
				opWg.Add(1)

				go func() {
					defer opWg.Done()

					<-startChan

					mu := l.Get(key)
					mu.Lock()
					data[workerID]++
					mu.Unlock()
				}()
			}
			opWg.Wait()
		}(i)
	}

	close(startChan)
	workerWg.Wait()

	for _, val := range data {
		assert.EqualValues(t, operationCount, val)
	}
}

func TestStripedLock_LockContext(t *testing.T) {
	l := NewStripedLock(1)

	unlock, err := l.LockContext(context.Background(), []byte("key1"))
	require.NoError(t, err)

	// With a single stripe, every key shares the lock
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.LockContext(ctx, []byte("key2"))
	assert.Equal(t, context.DeadlineExceeded, err)

	acquired := make(chan struct{})
	go func() {
		unlock, err := l.LockContext(context.Background(), []byte("key2"))
		if err == nil {
			unlock()
		}
		close(acquired)
	}()

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock wasn't acquired after release")
	}
}

func TestStripedLock_ConsistentMapping(t *testing.T) {
	l := NewStripedLock(16)

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("distribution%d", i))
		assert.Same(t, l.Get(key), l.Get(key))
	}
}
