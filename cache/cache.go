// Package cache implements a process-wide, size-bounded
// least-recently-used tile cache keyed by (source, tile position), with
// strict access-order semantics and exact byte accounting. The eviction
// engine is modeled directly on the
// byte-budgeted LRU used to bound GPU texture memory in the gogpu/gg
// reference repo, generalized from GPU textures to tiles: a
// container/list-backed LRU list plus a map, evicting from the back
// until usage is back under budget.
package cache

import (
	"container/list"
	"sync"

	"github.com/gracefulearth/tilecache"
	"github.com/gracefulearth/tilecache/internal/telemetry"
)

// SourceIdentity is the identity component of a Key. Equality is the
// identity of the source object (e.g. the source's own pointer), never a
// value comparison of its configuration — two different source objects
// referring to the same underlying file are not equivalent keys.
type SourceIdentity any

// Key identifies one cached tile: the identity of the source it came
// from, plus the (shared) tile position within that source's scheme.
type Key struct {
	Source   SourceIdentity
	Position *tilecache.TilePosition
}

type entry struct {
	key  Key
	tile *tilecache.Tile
}

// Cache is a byte-bounded, strictly ordered LRU cache of tiles. Every
// Get and Put moves/places its key at the most-recently-used end. size
// always equals the exact sum of tile.Bytes() over all present tiles;
// eviction never leaves the cache over capacity after Put returns,
// except transiently for an entry that alone exceeds capacity (which is
// accepted and then immediately evicted).
//
// A single mutex guards the whole structure: all cache mutations are
// atomic with respect to each other.
type Cache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	order    *list.List // front = most recently used, back = least recently used
	index    map[Key]*list.Element
}

// New creates an empty cache with the given byte capacity.
func New(capacityBytes int64) *Cache {
	return &Cache{
		capacity: capacityBytes,
		order:    list.New(),
		index:    make(map[Key]*list.Element),
	}
}

// SetCapacity changes the byte ceiling. If the cache is now over
// capacity, LRU eviction runs immediately.
func (c *Cache) SetCapacity(bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = bytes
	c.evictLocked()
}

// Capacity returns the current byte ceiling.
func (c *Cache) Capacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Size returns the current total byte count of all cached tiles.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Get returns the tile for key and marks it most-recently-used, or
// (nil, false) if absent. The returned pointer is the same one held
// internally by the cache; callers that keep it past eviction (e.g. a
// CachedGrid's weak last-tile reference) observe it becoming
// unreachable once the cache and every other holder have dropped it.
func (c *Cache) Get(key Key) (*tilecache.Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry).tile, true
}

// Put inserts or replaces the tile for key, placing it at the
// most-recently-used end, then evicts least-recently-used entries (never
// the one just inserted, unless it alone exceeds capacity) until size is
// back at or under capacity.
func (c *Cache) Put(key Key, tile *tilecache.Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		old := elem.Value.(*entry)
		c.size -= old.tile.Bytes()
		old.tile = tile
		c.size += tile.Bytes()
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&entry{key: key, tile: tile})
		c.index[key] = elem
		c.size += tile.Bytes()
	}

	c.evictLocked()
}

// Remove deletes key from the cache, subtracting its bytes.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeElemLocked(key)
}

// Clear deletes every entry and resets the byte count to zero.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[Key]*list.Element)
	c.size = 0
}

// Keys returns a snapshot of all cached keys, most-recently-used first.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Key, 0, len(c.index))
	for e := c.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*entry).key)
	}
	return out
}

// RemoveWhere deletes every key for which pred returns true, returning
// the number removed. Used by the cache manager's
// RemoveTilesForSource, which needs to filter by source identity rather
// than by a single key.
func (c *Cache) RemoveWhere(pred func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []Key
	for k := range c.index {
		if pred(k) {
			toRemove = append(toRemove, k)
		}
	}
	for _, k := range toRemove {
		c.removeElemLocked(k)
	}
	return len(toRemove)
}

func (c *Cache) removeElemLocked(key Key) {
	elem, ok := c.index[key]
	if !ok {
		return
	}
	c.size -= elem.Value.(*entry).tile.Bytes()
	c.order.Remove(elem)
	delete(c.index, key)
}

// evictLocked evicts least-recently-used entries, from the back of the
// access-order list, until size is at or under capacity or the cache is
// empty. Because Put always places the just-written entry at the front
// (most-recently-used) end, it is only ever evicted here once it has
// become the sole remaining entry — satisfying "eviction never removes
// the entry just inserted unless that entry alone exceeds capacity"
// without any special-casing.
func (c *Cache) evictLocked() {
	for c.size > c.capacity && c.order.Len() > 0 {
		back := c.order.Back()
		e := back.Value.(*entry)
		c.size -= e.tile.Bytes()
		c.order.Remove(back)
		delete(c.index, e.key)
		telemetry.CacheEvictions.WithLabelValues(telemetry.SourceLabel(e.key.Source)).Inc()
	}
}
