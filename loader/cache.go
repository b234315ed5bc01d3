package loader

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

type cacheEntry struct {
	digest  uint64
	element Element
}

// Cache avoids re-decoding unchanged data: it is keyed by a Location and
// remembers the xxhash digest of the raw bytes it last decoded there, so
// a repeated Decode call with identical bytes returns the cached Element
// instead of running the codec again.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Decode returns the cached Element for location if data hashes to the
// digest stored there, otherwise it decodes data with codec and caches
// the result.
func (c *Cache) Decode(codec Codec, location Location, data []byte) (Element, error) {
	digest := xxhash.Sum64(data)
	key := location.String()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && entry.digest == digest {
		return entry.element, nil
	}

	el, err := codec.Decode(data)
	if err != nil {
		return Element{}, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{digest: digest, element: el}
	c.mu.Unlock()
	return el, nil
}

// Invalidate drops any cached entry for location, forcing the next
// Decode call for it to re-run the codec regardless of digest.
func (c *Cache) Invalidate(location Location) {
	c.mu.Lock()
	delete(c.entries, location.String())
	c.mu.Unlock()
}

// Len reports the number of distinct locations currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
