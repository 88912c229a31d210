package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"sync"

	"github.com/couchcryptid/flood-detection-service/internal/observability"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// CachedBackend wraps a raster.Backend with in-memory LRU caches for Size and
// ReduceRegion, keyed by graph fingerprint. Expression graphs are pure, so
// a repeated analysis of the same inputs never re-runs a reduction. Tile
// requests always reach the inner backend.
type CachedBackend struct {
	inner   raster.Backend
	sizes   *lruCache[int]
	stats   *lruCache[raster.Stats]
	metrics *observability.Metrics
}

// NewCachedBackend creates a cache decorator holding up to maxEntries results
// per operation.
func NewCachedBackend(inner raster.Backend, maxEntries int, metrics *observability.Metrics) *CachedBackend {
	return &CachedBackend{
		inner:   inner,
		sizes:   newLRUCache[int](maxEntries),
		stats:   newLRUCache[raster.Stats](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedBackend) Size(ctx context.Context, coll raster.Collection) (int, error) {
	key := coll.Fingerprint()
	if n, ok := c.sizes.get(key); ok {
		c.metrics.BackendCache.WithLabelValues(OpSize, "hit").Inc()
		return n, nil
	}
	c.metrics.BackendCache.WithLabelValues(OpSize, "miss").Inc()
	n, err := c.inner.Size(ctx, coll)
	if err != nil {
		return 0, err
	}
	// Only cache non-empty results so a window that gains acquisitions
	// later is re-counted.
	if n > 0 {
		c.sizes.put(key, n)
	}
	return n, nil
}

func (c *CachedBackend) ReduceRegion(ctx context.Context, img raster.Image, req raster.ReduceRequest) (raster.Stats, error) {
	key := reduceKey(img, req)
	if s, ok := c.stats.get(key); ok {
		c.metrics.BackendCache.WithLabelValues(OpReduce, "hit").Inc()
		return maps.Clone(s), nil
	}
	c.metrics.BackendCache.WithLabelValues(OpReduce, "miss").Inc()
	s, err := c.inner.ReduceRegion(ctx, img, req)
	if err != nil {
		return nil, err
	}
	if len(s) > 0 {
		c.stats.put(key, maps.Clone(s))
	}
	return s, nil
}

func (c *CachedBackend) TileURL(ctx context.Context, img raster.Image, viz raster.Visualization) (string, error) {
	return c.inner.TileURL(ctx, img, viz)
}

// Ping forwards to the inner backend when it supports health checks.
func (c *CachedBackend) Ping(ctx context.Context) error {
	if p, ok := c.inner.(raster.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// reduceKey combines the image fingerprint with every request parameter.
func reduceKey(img raster.Image, req raster.ReduceRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return img.Fingerprint() + ":" + hex.EncodeToString(sum[:8])
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
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

func (c *lruCache[V]) remove(e *entry[V]) {
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

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
