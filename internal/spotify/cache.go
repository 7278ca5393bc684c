package spotify

import (
	"container/list"
	"sync"
)

// coverCache is a bounded cover-URL cache with recency-based eviction.
// Negative lookups are cached as empty strings so repeated misses do not
// re-query the API.
type coverCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element
}

type coverEntry struct {
	key string
	url string
}

func newCoverCache(maxSize int) *coverCache {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &coverCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *coverCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*coverEntry).url, true
}

func (c *coverCache) put(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*coverEntry).url = url
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&coverEntry{key: key, url: url})
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*coverEntry).key)
	}
}

func (c *coverCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
