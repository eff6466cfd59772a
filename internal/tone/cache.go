package tone

import (
	"sync"
	"sync/atomic"
	"time"
)

type cacheKey struct {
	frequency  float64
	duration   time.Duration
	sampleRate int
	channels   int
}

// Cache memoizes buffers for repeated parameters, e.g. the single reference
// beep shared by every voice in fixed-pitch mode. Oldest entries are evicted
// first once the cache is full.
type Cache struct {
	synth *Synthesizer
	size  int

	mu      sync.Mutex
	entries map[cacheKey]*Buffer
	order   []cacheKey

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding at most size buffers
func NewCache(synth *Synthesizer, size int) *Cache {
	if size < 1 {
		size = 1
	}
	return &Cache{
		synth:   synth,
		size:    size,
		entries: make(map[cacheKey]*Buffer, size),
	}
}

// Get returns a cached buffer or generates and stores a new one
func (c *Cache) Get(frequency float64, duration time.Duration, sampleRate, channels int) (*Buffer, error) {
	key := cacheKey{frequency, duration, sampleRate, channels}

	c.mu.Lock()
	if buf, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return buf, nil
	}
	c.mu.Unlock()

	c.misses.Add(1)
	buf, err := c.synth.Generate(frequency, duration, sampleRate, channels)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	if len(c.order) >= c.size {
		oldest := c.order[0]
		copy(c.order, c.order[1:])
		c.order = c.order[:len(c.order)-1]
		delete(c.entries, oldest)
	}
	c.entries[key] = buf
	c.order = append(c.order, key)

	return buf, nil
}

// Len returns the number of cached buffers
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CacheStats contains cache statistics
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Entries: c.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
