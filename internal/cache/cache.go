// Package cache provides the in-process read-through cache that sits between
// the trading service and the broker API.
//
// Entries are refreshed inline when older than the freshness window. A failed
// or empty refresh never replaces a good value: the last known-good value is
// served instead, and only when nothing was ever fetched does a lookup report
// "no data". Entries live for the lifetime of the process.
package cache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is the freshness window applied to every key.
	DefaultTTL = 30 * time.Second

	defaultShards = 16
)

// Entry is the last known-good value for a key.
type Entry struct {
	Value     any
	FetchedAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// Cache memoizes fetch results per key. The zero value is not usable; use New.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
	obs    Observer
	shards []*shard

	// collapses concurrent refreshes of the same key
	flights singleflight.Group
}

type Option func(*Cache)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithMetrics reports every lookup outcome to o.
func WithMetrics(o Observer) Option {
	return func(c *Cache) {
		if o != nil {
			c.obs = o
		}
	}
}

// WithShards sets how many independently locked maps back the cache.
func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = make([]*shard, n)
		}
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:    DefaultTTL,
		now:    time.Now,
		log:    zerolog.Nop(),
		obs:    NoopObserver{},
		shards: make([]*shard, defaultShards),
	}
	for _, o := range opts {
		o(c)
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]Entry)}
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Peek returns the stored entry for key without refreshing it.
func (c *Cache) Peek(key string) (Entry, bool) {
	return c.lookup(key)
}

// Len reports how many keys have ever been stored.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

func (c *Cache) lookup(key string) (Entry, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	return e, ok
}

func (c *Cache) store(key string, v any) {
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = Entry{Value: v, FetchedAt: c.now()}
	s.mu.Unlock()
}

func (c *Cache) fresh(e Entry) bool {
	return c.now().Sub(e.FetchedAt) < c.ttl
}
