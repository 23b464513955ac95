package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// HolderCache remembers each session's broadcaster for a short while so
// ingress frames can be checked without a store read per frame. An empty
// holder is cached too: nobody may broadcast.
type HolderCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewHolderCache(ttl time.Duration) *HolderCache {
	return &HolderCache{
		cache: cache.New(ttl, 10*ttl+time.Minute),
		ttl:   ttl,
	}
}

// Get returns the cached holder. With a zero ttl it always misses.
func (c *HolderCache) Get(sessionId string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	holder, ok := c.cache.Get(sessionId)
	if !ok {
		return "", false
	}
	return holder.(string), true
}

func (c *HolderCache) Set(sessionId, holder string) {
	if c.ttl <= 0 {
		return
	}
	c.cache.Set(sessionId, holder, c.ttl)
}

func (c *HolderCache) Forget(sessionId string) {
	c.cache.Delete(sessionId)
}
