package modules

import (
	"sort"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/nooga/weld/pkg/source"
	"github.com/nooga/weld/pkg/sourcemap"
	"github.com/nooga/weld/pkg/syntax"
)

// CacheEntry is the load and parse result of one module.
type CacheEntry struct {
	ID     string
	Hash   uint64 // xxh3 of the stored bytes the entry was computed from
	Source *source.SourceFile
	File   *syntax.File
	Map    *sourcemap.Map
	Raw    []byte
	Err    error // Parse error, cached like a result
}

// CacheStats contains statistics about the module cache
type CacheStats struct {
	Entries     int // Entries currently cached
	CacheHits   int // Lookups that returned a fresh entry
	CacheMisses int // Lookups that found nothing or a stale entry
	Evictions   int // Entries dropped by Retain or Remove
}

// Cache keeps parse results per canonical id across builds. An entry is
// reused only while the content hash matches and the asset is unmodified.
type Cache struct {
	entries map[string]*CacheEntry
	mutex   sync.RWMutex
	stats   CacheStats
}

// NewCache creates an empty module cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CacheEntry)}
}

// HashContent returns the content hash used to validate entries.
func HashContent(content []byte) uint64 {
	return xxh3.Hash(content)
}

// Lookup returns the entry for id if it was computed from content with the
// given hash. A modified asset always misses.
func (c *Cache) Lookup(id string, hash uint64, modified bool) *CacheEntry {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry := c.entries[id]
	if entry == nil || modified || entry.Hash != hash {
		c.stats.CacheMisses++
		return nil
	}
	c.stats.CacheHits++
	return entry
}

// Set stores an entry
func (c *Cache) Set(entry *CacheEntry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[entry.ID] = entry
}

// Remove drops the entry for id
func (c *Cache) Remove(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.entries[id]; ok {
		delete(c.entries, id)
		c.stats.Evictions++
	}
}

// Retain drops every entry whose id is not in keep and returns the ids
// that were dropped, sorted.
func (c *Cache) Retain(keep func(id string) bool) []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var dropped []string
	for id := range c.entries {
		if !keep(id) {
			delete(c.entries, id)
			dropped = append(dropped, id)
		}
	}
	c.stats.Evictions += len(dropped)
	sort.Strings(dropped)
	return dropped
}

// Clear drops all entries and resets statistics
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*CacheEntry)
	c.stats = CacheStats{}
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.entries)
}

// GetStats returns current cache statistics
func (c *Cache) GetStats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := c.stats
	stats.Entries = len(c.entries)
	return stats
}
