package content

import (
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes another Analyzer by input text. Analysis is a pure function
// of its input, so entries never go stale.
type Cache struct {
	next  Analyzer
	cache *lru.Cache[string, Structured]
}

// NewCache wraps next with an LRU cache holding up to size results.
func NewCache(size int, next Analyzer) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("content cache: size must be greater than zero, got %d", size)
	}
	if next == nil {
		next = Default
	}
	c, err := lru.New[string, Structured](size)
	if err != nil {
		return nil, fmt.Errorf("content cache: %w", err)
	}
	return &Cache{next: next, cache: c}, nil
}

// Analyze returns the cached result for text, computing it on a miss.
// Returned values never share their Tags slice with the cache.
func (c *Cache) Analyze(text string) Structured {
	if s, ok := c.cache.Get(text); ok {
		s.Tags = slices.Clone(s.Tags)
		return s
	}
	s := c.next.Analyze(text)
	stored := s
	stored.Tags = slices.Clone(s.Tags)
	c.cache.Add(text, stored)
	return s
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.cache.Len() }
