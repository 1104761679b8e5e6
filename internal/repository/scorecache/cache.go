// Package scorecache keeps recent classifier outputs keyed by image digest.
package scorecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// Cache is an in-memory LRU of raw score vectors.
// Scores rather than rankings are stored so different k values share entries.
type Cache struct {
	entries    *lru.Cache[string, []float32]
	cacheTotal *prometheus.CounterVec
}

// New creates a cache holding up to size entries.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), may be nil.
func New(size int, cacheTotal *prometheus.CounterVec) (*Cache, error) {
	entries, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create score cache: %w", err)
	}
	return &Cache{entries: entries, cacheTotal: cacheTotal}, nil
}

// Key returns the cache key for raw image bytes.
func Key(image []byte) string {
	h := sha256.Sum256(image)
	return hex.EncodeToString(h[:])
}

// Get returns a copy of the cached scores for key.
func (c *Cache) Get(key string) ([]float32, bool) {
	scores, ok := c.entries.Get(key)
	if !ok {
		c.inc("miss")
		return nil, false
	}
	c.inc("hit")
	return clone(scores), true
}

// Add stores a copy of scores under key.
func (c *Cache) Add(key string, scores []float32) {
	c.entries.Add(key, clone(scores))
}

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.entries.Len() }

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func clone(s []float32) []float32 {
	out := make([]float32, len(s))
	copy(out, s)
	return out
}
