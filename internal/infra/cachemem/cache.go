// Package cachemem holds verification results in process memory. It backs
// single-instance deployments without redis and the test suites.
package cachemem

import (
	"context"
	"sync"
	"time"

	"wipetrace/internal/domain"
	"wipetrace/internal/usecase"
)

type Cache struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

type item struct {
	result domain.VerificationResult
	// staleAfter zero means the entry never goes stale.
	staleAfter time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests drive expiry with a fixed clock.
func NewWithClock(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{items: make(map[string]item), now: now}
}

func (c *Cache) Get(_ context.Context, key string) (*domain.VerificationResult, bool, error) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || c.stale(it) {
		return nil, false, nil
	}
	result := it.result
	return &result, true, nil
}

func (c *Cache) Put(_ context.Context, key string, value domain.VerificationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Stale entries are swept on write; reads leave them in place.
	for k, it := range c.items {
		if c.stale(it) {
			delete(c.items, k)
		}
	}
	it := item{result: value}
	if ttl > 0 {
		it.staleAfter = c.now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

func (c *Cache) stale(it item) bool {
	return !it.staleAfter.IsZero() && c.now().After(it.staleAfter)
}

var _ usecase.VerificationCache = (*Cache)(nil)
