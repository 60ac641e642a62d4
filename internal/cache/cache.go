// Package cache holds fetched documents for the lifetime of a crawl and
// across runs. Concurrent requests for the same key share one fetch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/matsen/papernet/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Cache names used for metrics and logging.
const (
	NameMetadata  = "metadata"
	NameCitations = "citations"
)

// FetchFunc produces a value for a missing key. It reports false when no
// value could be obtained; such results are never stored.
type FetchFunc[V any] func(ctx context.Context) (V, bool)

// Cache maps document ids to values. Entries are only ever added or
// overwritten, never evicted.
type Cache[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]V
	flights singleflight.Group
	metrics *metrics.Collector
}

type result[V any] struct {
	value V
	ok    bool
}

// New creates an empty cache. m may be nil.
func New[V any](name string, m *metrics.Collector) *Cache[V] {
	return &Cache[V]{
		name:    name,
		entries: make(map[string]V),
		metrics: m,
	}
}

// Name returns the cache name.
func (c *Cache[V]) Name() string {
	return c.name
}

// Get returns the stored value for id.
func (c *Cache[V]) Get(id string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[id]
	return v, ok
}

// Put stores v under id, replacing any previous value.
func (c *Cache[V]) Put(id string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = v
}

// PutIfAbsent stores v under id unless a value is already present.
// It reports whether v was stored.
func (c *Cache[V]) PutIfAbsent(id string, v V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		return false
	}
	c.entries[id] = v
	return true
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored ids in sorted order.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of all entries.
func (c *Cache[V]) Snapshot() map[string]V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]V, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Merge stores every entry of m, overwriting existing keys.
func (c *Cache[V]) Merge(m map[string]V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range m {
		c.entries[k] = v
	}
}

// GetOrFetch returns the stored value for id, or runs fetch to obtain it.
// Callers asking for the same id while a fetch is running wait for that
// fetch and receive its result. Successful results are stored before any
// waiter returns, so a later caller sees the entry instead of fetching.
func (c *Cache[V]) GetOrFetch(ctx context.Context, id string, fetch FetchFunc[V]) (V, bool) {
	if v, ok := c.Get(id); ok {
		c.metrics.IncCache(c.name, metrics.CacheHit)
		return v, true
	}

	// Set only in the goroutine that runs the fetch.
	leader := false
	res, _, _ := c.flights.Do(id, func() (any, error) {
		leader = true
		// A flight for id may have finished between the check above and Do.
		if v, ok := c.Get(id); ok {
			return result[V]{value: v, ok: true}, nil
		}
		v, ok := fetch(ctx)
		if ok {
			c.Put(id, v)
		}
		return result[V]{value: v, ok: ok}, nil
	})

	if leader {
		c.metrics.IncCache(c.name, metrics.CacheMiss)
	} else {
		c.metrics.IncCache(c.name, metrics.CacheCoalesced)
	}
	r := res.(result[V])
	return r.value, r.ok
}

// Persist writes the cache to path as an indented JSON object. Parent
// directories are created as needed.
func (c *Cache[V]) Persist(path string) error {
	data, err := json.MarshalIndent(c.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s cache: %w", c.name, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s cache: %w", c.name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s cache: %w", c.name, err)
	}
	return nil
}

// Reload merges the entries stored at path into the cache. A missing
// file leaves the cache unchanged and is not an error.
func (c *Cache[V]) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s cache: %w", c.name, err)
	}

	var m map[string]V
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing %s cache %s: %w", c.name, path, err)
	}
	c.Merge(m)
	return nil
}
