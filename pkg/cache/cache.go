package cache

import (
	"container/list"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrKeyExists = errors.New("key already exists in cache")
)

// Cache is a weighted LRU cache. Inserting past the weight budget evicts the
// least recently used entries.
type Cache interface {
	// GetWeight gets the current weight of all entries
	GetWeight() int

	// GetBudget gets the maximum weight of all entries
	GetBudget() int

	// Len gets the number of entries
	Len() int

	// Insert adds a new entry. ErrKeyExists is returned if the key is already
	// cached, in which case the existing entry is left untouched.
	Insert(key string, value interface{}, weight int) error

	// Retrieve gets an entry, marking it as recently used
	Retrieve(key string) (interface{}, bool)

	// Clear removes all entries
	Clear()
}

type entry struct {
	key    string
	value  interface{}
	weight int
}

type cache struct {
	log *logrus.Entry

	mu     sync.Mutex
	order  *list.List
	lookup map[string]*list.Element
	weight int
	budget int
}

// NewCache returns a new in memory cache with the provided weight budget
func NewCache(budget int) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		order:  list.New(),
		lookup: make(map[string]*list.Element),
		budget: budget,
	}
}

// GetWeight implements Cache.GetWeight
func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

// GetBudget implements Cache.GetBudget
func (c *cache) GetBudget() int {
	return c.budget
}

// Len implements Cache.Len
func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Insert implements Cache.Insert
func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, found := c.lookup[key]; found {
		return ErrKeyExists
	}

	c.lookup[key] = c.order.PushFront(&entry{
		key:    key,
		value:  value,
		weight: weight,
	})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.order.Remove(c.order.Back()).(*entry)
		delete(c.lookup, evicted.key)
		c.weight -= evicted.weight

		c.log.WithFields(logrus.Fields{
			"key":          evicted.key,
			"weight":       evicted.weight,
			"spare_weight": c.budget - c.weight,
		}).Trace("evicted cache entry")
	}

	return nil
}

// Retrieve implements Cache.Retrieve
func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, found := c.lookup[key]
	if !found {
		return nil, false
	}

	c.order.MoveToFront(element)
	return element.Value.(*entry).value, true
}

// Clear implements Cache.Clear
func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}
