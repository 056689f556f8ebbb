package pipeline

import lru "github.com/hashicorp/golang-lru/v2"

// resultCache is a thread-safe LRU of generated results keyed by report ID.
type resultCache = lru.Cache[string, *Result]

// newResultCache holds at most size results; sizes below one hold a single
// result. onEvict, when non-nil, runs for every entry pushed out by a newer one.
func newResultCache(size int, onEvict func(id string, res *Result)) *resultCache {
	if size < 1 {
		size = 1
	}
	c, _ := lru.NewWithEvict(size, onEvict) // errors only for size < 1
	return c
}
