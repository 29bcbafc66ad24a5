package cachemem

import (
	"context"
	"sync"
	"time"

	"keryx/internal/domain"
	"keryx/internal/usecase"
)

// Cache memoizes full-chain verification reports keyed by the log head. Any
// append changes the head, so stale reports age out naturally.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value     domain.ChainVerification
	expiresAt time.Time
	hasExpiry bool
}

func New() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.ChainVerification, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.hasExpiry && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	value := cloneVerification(entry.value)
	return &value, true, nil
}

func (c *Cache) Put(ctx context.Context, key string, value domain.ChainVerification, ttl time.Duration) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: cloneVerification(value)}
	if ttl > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = entry
	return nil
}

func cloneVerification(in domain.ChainVerification) domain.ChainVerification {
	out := in
	if in.Events != nil {
		out.Events = make([]domain.EventVerification, len(in.Events))
		copy(out.Events, in.Events)
	}
	return out
}

var _ usecase.VerificationCache = (*Cache)(nil)
