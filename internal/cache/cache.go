// Package cache implements the gateway's response cache (component D):
// a per-method-TTL map keyed by method name and the canonical form of its
// parameters.
package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

type entry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// Cache is the process-local response cache. It is safe for concurrent
// use; every operation is non-blocking.
type Cache struct {
	c *otter.Cache[string, entry]

	mu     sync.Mutex
	counts map[string]int // method -> live entry count, maintained via the eviction callback
}

// Stats is the result of Stats(): a size snapshot and per-method breakdown.
type Stats struct {
	Size     int
	ByMethod map[string]int
}

// New builds a Cache capped at maxSize entries (approximate; eviction
// beyond that size follows otter's W-TinyLFU policy).
func New(maxSize int) (*Cache, error) {
	cc := &Cache{counts: make(map[string]int)}

	c, err := otter.New[string, entry](&otter.Options[string, entry]{
		MaximumSize: maxSize,
		OnDeletion: func(e otter.DeletionEvent[string, entry]) {
			// A replaced value leaves the entry live; Store did not count it twice.
			if e.Cause == otter.CauseReplacement {
				return
			}
			cc.mu.Lock()
			defer cc.mu.Unlock()
			if m, _ := splitKey(e.Key); m != "" {
				cc.counts[m]--
				if cc.counts[m] <= 0 {
					delete(cc.counts, m)
				}
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	cc.c = c
	return cc, nil
}

// Key returns the canonical cache key `method:canonical(params)` per
// spec §3: deterministic JSON with sorted keys, so two logically equal
// parameter maps collide.
func Key(method string, params map[string]any) string {
	return method + ":" + canonical(params)
}

func splitKey(key string) (method, rest string) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i], key[i+1:]
		}
	}
	return "", key
}

// canonical serialises params deterministically: keys sorted, nested maps
// recursively normalised. Grounded on the teacher's stableJSON technique
// (sort keys, marshal an ordered slice instead of the map directly, since
// Go map iteration order is not deterministic).
func canonical(params map[string]any) string {
	data, _ := json.Marshal(normalize(params))
	return string(data)
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make([]struct {
			K string `json:"k"`
			V any    `json:"v"`
		}, len(keys))
		for i, k := range keys {
			ordered[i].K = k
			ordered[i].V = normalize(x[k])
		}
		return ordered
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return x
	}
}

// Lookup returns the cached value for (method, params) if present and not
// expired. An expired entry is evicted eagerly before reporting a miss.
func (c *Cache) Lookup(method string, params map[string]any) (json.RawMessage, bool) {
	key := Key(method, params)
	e, ok := c.c.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.c.Invalidate(key)
		return nil, false
	}
	return e.value, true
}

// Store records value under (method, params) with the given TTL. Callers
// are responsible for only calling Store for methods with a registered
// TTL; the cache itself does not consult the method descriptor table.
func (c *Cache) Store(method string, params map[string]any, value json.RawMessage, ttl time.Duration) {
	key := Key(method, params)
	_, existed := c.c.GetIfPresent(key)
	c.c.Set(key, entry{value: value, expiresAt: time.Now().Add(ttl)})
	if !existed {
		c.mu.Lock()
		c.counts[method]++
		c.mu.Unlock()
	}
}

// EvictMethod removes every cached entry for method, leaving entries of
// other methods untouched.
func (c *Cache) EvictMethod(method string) {
	for key := range c.c.All() {
		if m, _ := splitKey(key); m == method {
			c.c.Invalidate(key)
		}
	}
}

// Clear removes every cached entry. Idempotent.
func (c *Cache) Clear() {
	c.c.InvalidateAll()
	c.mu.Lock()
	c.counts = make(map[string]int)
	c.mu.Unlock()
}

// Stats reports the current size and per-method live-entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	byMethod := make(map[string]int, len(c.counts))
	total := 0
	for m, n := range c.counts {
		byMethod[m] = n
		total += n
	}
	return Stats{Size: total, ByMethod: byMethod}
}
