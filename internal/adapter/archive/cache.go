package archive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	"github.com/couchcryptid/drought-index-etl/internal/observability"
)

// CachedSource wraps a RasterSource with an in-memory LRU cache.
type CachedSource struct {
	inner   domain.RasterSource
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedSource creates a cache decorator around a raster source.
func NewCachedSource(inner domain.RasterSource, maxEntries int, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Series implements domain.RasterSource. Callers get their own copy of every
// raster.
func (c *CachedSource) Series(ctx context.Context, q domain.Query) ([]domain.Observation, error) {
	key := queryKey(q)
	if obs, ok := c.cache.get(key); ok {
		c.metrics.ArchiveCache.WithLabelValues("hit").Inc()
		return cloneSeries(obs), nil
	}
	c.metrics.ArchiveCache.WithLabelValues("miss").Inc()

	obs, err := c.inner.Series(ctx, q)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty series so months still being ingested upstream can be retried.
	if len(obs) > 0 {
		c.cache.put(key, cloneSeries(obs))
	}
	return obs, nil
}

func queryKey(q domain.Query) string {
	b := q.Bounds
	return fmt.Sprintf("%s|%s|%s|%.6f,%.6f,%.6f,%d,%d",
		q.Band, q.Start.UTC().Format(time.RFC3339), q.End.UTC().Format(time.RFC3339),
		b.West, b.North, b.CellSize, b.Width, b.Height)
}

func cloneSeries(obs []domain.Observation) []domain.Observation {
	out := make([]domain.Observation, len(obs))
	for i, o := range obs {
		out[i] = domain.Observation{Time: o.Time, Raster: o.Raster.Clone()}
	}
	return out
}

// lruCache is a simple thread-safe LRU cache of observation series.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value []domain.Observation
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.Observation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
