package normalize

import "sync"

// DefaultCacheEntries caps each map of a Cache built by NewCache.
const DefaultCacheEntries = 10000

// Cache memoizes company canonicalization and date parsing keyed by the raw
// input string. Each map holds at most maxEntries values; the oldest entry
// is evicted first. It is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	companies *boundedMap[string]
	dates     *boundedMap[ParsedDate]
}

// NewCache creates an empty Cache holding up to DefaultCacheEntries
// companies and as many dates.
func NewCache() *Cache {
	return NewCacheSize(DefaultCacheEntries)
}

// NewCacheSize creates an empty Cache with the given per-map capacity.
// maxEntries <= 0 falls back to DefaultCacheEntries.
func NewCacheSize(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &Cache{
		companies: newBoundedMap[string](maxEntries),
		dates:     newBoundedMap[ParsedDate](maxEntries),
	}
}

// Company returns the canonical form of name, computing it on first use.
func (c *Cache) Company(name string) string {
	c.mu.RLock()
	v, ok := c.companies.get(name)
	c.mu.RUnlock()
	if ok {
		return v
	}

	v = CanonicalCompany(name)
	c.mu.Lock()
	c.companies.put(name, v)
	c.mu.Unlock()
	return v
}

// Date returns the parse of s, computing it on first use.
func (c *Cache) Date(s string) ParsedDate {
	c.mu.RLock()
	v, ok := c.dates.get(s)
	c.mu.RUnlock()
	if ok {
		return v
	}

	v = ParseDate(s)
	c.mu.Lock()
	c.dates.put(s, v)
	c.mu.Unlock()
	return v
}

// Len returns the number of cached company and date entries.
func (c *Cache) Len() (companies, dates int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.companies.entries), len(c.dates.entries)
}

// boundedMap is a FIFO-evicting map. Callers hold the Cache lock.
type boundedMap[V any] struct {
	entries    map[string]V
	order      []string
	maxEntries int
}

func newBoundedMap[V any](maxEntries int) *boundedMap[V] {
	return &boundedMap[V]{
		entries:    make(map[string]V),
		maxEntries: maxEntries,
	}
}

func (m *boundedMap[V]) get(key string) (V, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *boundedMap[V]) put(key string, v V) {
	if _, ok := m.entries[key]; ok {
		m.entries[key] = v
		return
	}
	for len(m.entries) >= m.maxEntries && len(m.order) > 0 {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = v
	m.order = append(m.order, key)
}
