// Package cache keeps recently built aggregate results so that repeated
// searches within a caller-chosen freshness window skip the browser.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/use-agent/shopscout/models"
)

// entry holds a cached aggregate with its creation timestamp.
type entry struct {
	result    *models.AggregateResult
	createdAt time.Time
}

// Cache is a size- and age-bounded LRU of aggregate results.
// It is safe for concurrent use.
type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// New creates a Cache holding at most maxEntries results, each dropped
// after ttl regardless of how it is read.
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, entry](maxEntries, nil, ttl),
		now: time.Now,
	}
}

// Key generates a cache key from the query and the selected source IDs.
// Query case and spacing, and source order, do not affect the key.
func Key(query string, sourceIDs []string) string {
	ids := slices.Clone(sourceIDs)
	slices.Sort(ids)

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached result younger than maxAge. If maxAge <= 0, no
// cache lookup is performed.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.AggregateResult, bool) {
	if maxAge <= 0 {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok || c.now().Sub(e.createdAt) > maxAge {
		return nil, false
	}
	return e.result, true
}

// Set stores a result. Results with failed sources are not cached, so a
// transient failure is retried on the next request.
func (c *Cache) Set(key string, result *models.AggregateResult) bool {
	if result == nil || len(result.Failures()) > 0 {
		return false
	}
	c.lru.Add(key, entry{result: result, createdAt: c.now()})
	return true
}

// Len reports the number of cached results.
func (c *Cache) Len() int { return c.lru.Len() }
