package normalize

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

// Namer is implemented by Normalizer and Cached.
type Namer interface {
	Basic(raw string) string
	Enhanced(raw string) string
}

type cacheEntry struct {
	basic    string
	enhanced string
}

// Cached memoizes a Normalizer in a bounded LRU keyed by the raw name.
// Scraped and registry pools repeat the same raw strings many times.
type Cached struct {
	inner *Normalizer
	cache *lru.Cache[string, cacheEntry]
}

// NewCached wraps n with an LRU of the given size.
func NewCached(n *Normalizer, size int) (*Cached, error) {
	if n == nil {
		return nil, eris.New("normalize: nil normalizer")
	}
	c, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: create lru cache")
	}
	return &Cached{inner: n, cache: c}, nil
}

func (c *Cached) lookup(raw string) cacheEntry {
	if e, ok := c.cache.Get(raw); ok {
		return e
	}
	tokens := c.inner.tokens(raw)
	e := cacheEntry{
		basic:    joinTokens(tokens),
		enhanced: joinTokens(MergeFragments(tokens)),
	}
	c.cache.Add(raw, e)
	return e
}

// Basic returns the cached basic form of raw.
func (c *Cached) Basic(raw string) string { return c.lookup(raw).basic }

// Enhanced returns the cached enhanced form of raw.
func (c *Cached) Enhanced(raw string) string { return c.lookup(raw).enhanced }
