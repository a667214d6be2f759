package main

import (
	"sort"
	"sync"
	"time"
)

const (
	cacheTTL        = 30 * time.Minute
	cacheMaxEntries = 50 // per namespace
)

// Namespaces in use across the app.
const (
	cacheNamespaceWidths = "col_widths"
	cacheNamespaceSearch = "search"
)

type cacheEntry struct {
	data        interface{}
	timestamp   time.Time
	accessCount int
}

// CacheStore memoizes derived values (computed column widths, search results)
// in independent namespaces. Entries expire after cacheTTL and each namespace
// is bounded at cacheMaxEntries; over the bound, entries are evicted lowest
// accessCount first, ties broken by oldest timestamp. Expiry is lazy: an
// expired entry is deleted when looked up or when a set runs eviction.
type CacheStore struct {
	mu          sync.Mutex
	namespaces  map[string]map[string]*cacheEntry
	lastCleared time.Time
	now         func() time.Time
}

func NewCacheStore() *CacheStore {
	return &CacheStore{
		namespaces: make(map[string]map[string]*cacheEntry),
		now:        time.Now,
	}
}

// Get returns the cached value for key, refreshing its access count. Expired
// entries are deleted and reported absent.
func (c *CacheStore) Get(namespace, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns := c.namespaces[namespace]
	if ns == nil {
		return nil, false
	}
	entry, ok := ns[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) > cacheTTL {
		delete(ns, key)
		return nil, false
	}
	entry.accessCount++
	return entry.data, true
}

// Set stores a value and then enforces the namespace's TTL and size bounds.
func (c *CacheStore) Set(namespace, key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns := c.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]*cacheEntry)
		c.namespaces[namespace] = ns
	}
	ns[key] = &cacheEntry{data: value, timestamp: c.now(), accessCount: 1}

	// Drop everything past its TTL first.
	now := c.now()
	for k, e := range ns {
		if now.Sub(e.timestamp) > cacheTTL {
			delete(ns, k)
		}
	}

	if len(ns) <= cacheMaxEntries {
		return
	}

	// Still over the bound: evict by ascending accessCount, then oldest.
	type victim struct {
		key   string
		entry *cacheEntry
	}
	victims := make([]victim, 0, len(ns))
	for k, e := range ns {
		victims = append(victims, victim{k, e})
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i].entry, victims[j].entry
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount
		}
		return a.timestamp.Before(b.timestamp)
	})
	for _, v := range victims {
		if len(ns) <= cacheMaxEntries {
			break
		}
		delete(ns, v.key)
	}
}

// Clear empties every namespace and stamps the last-cleared marker.
func (c *CacheStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces = make(map[string]map[string]*cacheEntry)
	c.lastCleared = c.now()
}

// LastCleared reports when the cache was last manually cleared (zero time if
// never). Exposed for diagnostics.
func (c *CacheStore) LastCleared() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCleared
}

// Len reports the live entry count of a namespace, counting expired entries
// as absent.
func (c *CacheStore) Len(namespace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	now := c.now()
	for _, e := range c.namespaces[namespace] {
		if now.Sub(e.timestamp) <= cacheTTL {
			n++
		}
	}
	return n
}
