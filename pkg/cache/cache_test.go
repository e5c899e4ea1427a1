package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertAndRetrieve(t *testing.T) {
	c := NewCache(10)

	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 2))

	value, ok := c.Retrieve("A")
	require.True(t, ok)
	assert.Equal(t, "valueA", value)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.Equal(t, 3, c.GetWeight())
	assert.Equal(t, 10, c.GetBudget())
	assert.Equal(t, 2, c.Len())
}

func TestCache_DuplicateRejected(t *testing.T) {
	c := NewCache(10)

	require.NoError(t, c.Insert("dupe", "first", 1))
	assert.Equal(t, ErrKeyExists, c.Insert("dupe", "second", 1))

	value, ok := c.Retrieve("dupe")
	require.True(t, ok)
	assert.Equal(t, "first", value)
	assert.Equal(t, 1, c.GetWeight())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)

	require.NoError(t, c.Insert("A", "valueA", 1))
	require.NoError(t, c.Insert("B", "valueB", 1))

	// A becomes the most recently used, leaving B to be evicted
	_, ok := c.Retrieve("A")
	require.True(t, ok)

	require.NoError(t, c.Insert("C", "valueC", 1))

	_, ok = c.Retrieve("B")
	assert.False(t, ok)
	_, ok = c.Retrieve("A")
	assert.True(t, ok)
	_, ok = c.Retrieve("C")
	assert.True(t, ok)
	assert.Equal(t, 2, c.GetWeight())

	// An evicted key can be inserted again
	assert.NoError(t, c.Insert("B", "valueB", 1))
}

func TestCache_HeavyEntryEvictsMany(t *testing.T) {
	c := NewCache(3)

	for _, key := range []string{"A", "B", "C"} {
		require.NoError(t, c.Insert(key, key, 1))
	}
	require.NoError(t, c.Insert("D", "D", 3))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 3, c.GetWeight())

	// Entries heavier than the budget never stay
	require.NoError(t, c.Insert("E", "E", 4))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.GetWeight())
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(10)

	require.NoError(t, c.Insert("A", "valueA", 1))
	c.Clear()

	_, ok := c.Retrieve("A")
	assert.False(t, ok)
	assert.Equal(t, 0, c.GetWeight())
	assert.NoError(t, c.Insert("A", "valueA", 1))
}

func TestCache_ConcurrentInsert(t *testing.T) {
	c := NewCache(1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var duplicates int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				if err := c.Insert(fmt.Sprintf("key%d", j), j, 1); err == ErrKeyExists {
					mu.Lock()
					duplicates++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len())
	assert.Equal(t, 700, duplicates)
}
