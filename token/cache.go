package token

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CountCache memoizes token counts in front of a Codec. Prompt assembly
// measures the same persona blocks and transcript lines over and over;
// caching the counts keeps repeated composition cheap.
type CountCache struct {
	codec Codec
	cache *ristretto.Cache
}

// NewCountCache wraps codec with an admission-controlled cache. Call Close
// when the cache is no longer needed.
func NewCountCache(codec Codec) (*CountCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("token count cache: %w", err)
	}
	return &CountCache{codec: codec, cache: cache}, nil
}

// Count returns the token count for text, consulting the cache first. The
// cost charged per entry is the key length; values are plain ints.
func (c *CountCache) Count(text string) (int, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.(int), nil
	}

	n, err := Count(c.codec, text)
	if err != nil {
		return 0, err
	}
	c.cache.Set(text, n, int64(len(text)))
	return n, nil
}

// Wait blocks until buffered cache writes have been applied. Mainly useful
// in tests that assert on cache hits.
func (c *CountCache) Wait() { c.cache.Wait() }

// Close releases the cache's resources.
func (c *CountCache) Close() { c.cache.Close() }
