package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"procverify/internal/decision"
	"procverify/pkg/platform/sentinel"
)

type cachedDecision struct {
	decision *decision.Decision
	storedAt time.Time
}

// InMemoryCache is a process-wide decision cache. Entries are stored and
// returned as clones, so callers never share a Decision with the cache.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cachedDecision
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type MemoryOption func(*InMemoryCache)

// WithTTL expires entries after ttl. Zero (the default) keeps entries until Clear.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *InMemoryCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source used for TTL checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *InMemoryCache) {
		if now != nil {
			c.now = now
		}
	}
}

func NewInMemoryCache(opts ...MemoryOption) *InMemoryCache {
	c := &InMemoryCache{
		entries: make(map[string]cachedDecision),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a clone of the cached decision. Each call counts exactly one
// hit or one miss.
func (c *InMemoryCache) Get(_ context.Context, fingerprint string) (*decision.Decision, error) {
	c.mu.RLock()
	cached, ok := c.entries[fingerprint]
	c.mu.RUnlock()

	if ok && c.expired(cached) {
		c.mu.Lock()
		if cur, still := c.entries[fingerprint]; still && c.expired(cur) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return nil, sentinel.ErrNotFound
	}
	c.hits.Add(1)
	return cached.decision.Clone(), nil
}

// Put stores a clone of d. A nil decision is ignored.
func (c *InMemoryCache) Put(_ context.Context, fingerprint string, d *decision.Decision) error {
	if d == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = cachedDecision{decision: d.Clone(), storedAt: c.now()}
	return nil
}

// Clear drops every entry. Counters are kept.
func (c *InMemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cachedDecision)
	return nil
}

func (c *InMemoryCache) Stats(_ context.Context) (Stats, error) {
	c.mu.RLock()
	n := 0
	for _, e := range c.entries {
		if !c.expired(e) {
			n++
		}
	}
	c.mu.RUnlock()
	return Stats{
		Entries: int64(n),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

func (c *InMemoryCache) ResetStats(_ context.Context) error {
	c.hits.Store(0)
	c.misses.Store(0)
	return nil
}

// Entries lists live entries, most recent first.
func (c *InMemoryCache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for fp, e := range c.entries {
		if c.expired(e) {
			continue
		}
		out = append(out, Entry{
			Fingerprint:   fp,
			ProcessNumber: e.decision.ProcessNumber,
			Outcome:       e.decision.Outcome,
			StoredAt:      e.storedAt,
		})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StoredAt.Equal(out[j].StoredAt) {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].StoredAt.After(out[j].StoredAt)
	})
	return out
}

func (c *InMemoryCache) expired(e cachedDecision) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}
