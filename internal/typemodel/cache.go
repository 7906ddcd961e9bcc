package typemodel

import (
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/cbind/internal/ir"
)

// Cache interns lowered types by spelling and host context. A Cache belongs
// to one session; nothing is shared between sessions.
//
// Lookups return clones so callers may edit the result in place.
type Cache struct {
	ctx HostContext

	mu      sync.Mutex
	buckets map[uint64][]cacheEntry
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	spelling string
	typ      *ir.CppType
}

// CacheStats is a point-in-time view of cache effectiveness.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// NewCache creates an empty cache lowering under ctx.
func NewCache(ctx HostContext) *Cache {
	return &Cache{ctx: ctx, buckets: make(map[uint64][]cacheEntry)}
}

// Context returns the host context the cache lowers under.
func (c *Cache) Context() HostContext { return c.ctx }

// Lower classifies and lowers spelling, reusing an earlier result when the
// normalized spelling was seen before.
func (c *Cache) Lower(spelling string) (*ir.CppType, error) {
	return c.LowerIn(spelling, nil)
}

// LowerIn is Lower with extra template parameters in scope.
func (c *Cache) LowerIn(spelling string, typeParams []string) (*ir.CppType, error) {
	key := normalize(spelling)
	if key == "" {
		return nil, ErrEmptySpelling
	}
	full := key
	if len(typeParams) > 0 {
		full = key + "\x00" + strings.Join(typeParams, ",")
	}
	h := xxhash.Sum64String(full)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.buckets[h] {
		if e.spelling == full {
			c.hits++
			return e.typ.Clone(), nil
		}
	}
	c.misses++
	ctx := c.ctx
	if len(typeParams) > 0 {
		ctx.TypeParams = append(slices.Clone(ctx.TypeParams), typeParams...)
	}
	t := Lower(classify(key), ctx)
	c.buckets[h] = append(c.buckets[h], cacheEntry{spelling: full, typ: t})
	return t.Clone(), nil
}

// Stats reports hit and miss counters and the number of interned types.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	size := 0
	for _, b := range c.buckets {
		size += len(b)
	}
	return CacheStats{Hits: c.hits, Misses: c.misses, Size: size}
}
