package cache

import (
	"container/list"
	"sync"
	"time"
)

// defaultMaxEntries bounds the memory cache when no size is configured.
const defaultMaxEntries = 1000

// LRUCache keeps response bodies in memory, evicting the least recently
// used body once maxEntries is reached. Expired bodies are dropped lazily.
type LRUCache struct {
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	mu     sync.Mutex
	items  map[string]*list.Element
	recent *list.List // front is most recently used
	bytes  int64
	hits   int64
	misses int64
}

type lruItem struct {
	key     string
	body    []byte
	expires time.Time
}

// NewLRUCache creates a memory cache. A non-positive maxEntries means 1000.
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &LRUCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
		items:      make(map[string]*list.Element),
		recent:     list.New(),
	}
}

func (c *LRUCache) Get(key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok && c.expired(elem.Value.(*lruItem)) {
		c.remove(elem)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false, nil
	}

	c.recent.MoveToFront(elem)
	c.hits++
	return elem.Value.(*lruItem).body, true, nil
}

func (c *LRUCache) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	for c.recent.Len() >= c.maxEntries {
		c.remove(c.recent.Back())
	}

	c.items[key] = c.recent.PushFront(&lruItem{
		key:     key,
		body:    value,
		expires: c.now().Add(c.ttl),
	})
	c.bytes += int64(len(value))
	return nil
}

func (c *LRUCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

func (c *LRUCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.recent.Init()
	c.bytes = 0
	return nil
}

func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Backend: BackendMemory,
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: c.recent.Len(),
		Bytes:   c.bytes,
	}
}

func (c *LRUCache) Close() error {
	return nil
}

func (c *LRUCache) expired(item *lruItem) bool {
	return c.ttl > 0 && c.now().After(item.expires)
}

// remove must be called with mu held.
func (c *LRUCache) remove(elem *list.Element) {
	item := c.recent.Remove(elem).(*lruItem)
	delete(c.items, item.key)
	c.bytes -= int64(len(item.body))
}
