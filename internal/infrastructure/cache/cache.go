// Package cache provides an in-process, TTL-bounded LRU cache with
// single-flight computation: concurrent misses on one key run the compute
// function once and share its result.
package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

const (
	DefaultTTL         = time.Hour
	DefaultCapacity    = 10000
	DefaultWaitTimeout = 5 * time.Second
)

// Eviction reasons reported to the Recorder.
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
)

// Recorder receives cache events.  *prometheus.EngineMetrics implements it.
type Recorder interface {
	CacheAccess(cache string, hit bool)
	CacheEviction(cache, reason string)
	CacheComputed(cache string, d time.Duration, err error)
	CacheTimeout(cache string)
	CacheSize(cache string, n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheAccess(string, bool)                  {}
func (nopRecorder) CacheEviction(string, string)              {}
func (nopRecorder) CacheComputed(string, time.Duration, error) {}
func (nopRecorder) CacheTimeout(string)                       {}
func (nopRecorder) CacheSize(string, int)                     {}

// ComputeFunc produces the value for a missing key.
type ComputeFunc[V any] func(ctx context.Context) (V, error)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	Evictions    uint64 `json:"evictions"` // capacity only
	Expirations  uint64 `json:"expirations"`
	Computations uint64 `json:"computations"`
	Timeouts     uint64 `json:"timeouts"`
	Entries      int    `json:"entries"`
}

type entry[V any] struct {
	key            string
	value          V
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
}

type options struct {
	ttl         time.Duration
	capacity    int
	waitTimeout time.Duration
	clock       func() time.Time
	logger      logging.Logger
	metrics     Recorder
	copier      any
}

// Option configures a Cache.
type Option func(*options)

// WithTTL sets the lifetime of an entry from its last write.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithCapacity sets the maximum number of live entries.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithWaitTimeout bounds how long GetOrCompute waits for a computation.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) { o.waitTimeout = d }
}

// WithClock replaces time.Now for expiry bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithLogger sets the logger used for evictions and timeouts.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the event Recorder.
func WithMetrics(r Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithCopier sets the function applied to every value handed to a caller.
// Its value type must match the Cache's.
func WithCopier[V any](fn func(V) V) Option {
	return func(o *options) { o.copier = fn }
}

// Cache is a concurrency-safe LRU cache of V keyed by string.
//
// The index mutex guards only O(1) bookkeeping and is never held while a
// value is computed; per-key serialisation comes from singleflight.
type Cache[V any] struct {
	name        string
	ttl         time.Duration
	capacity    int
	waitTimeout time.Duration
	now         func() time.Time
	copy        func(V) V
	logger      logging.Logger
	metrics     Recorder

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front is most recently used
	closed bool
	stop   context.CancelFunc
	done   chan struct{}

	flight singleflight.Group

	hits, misses, evictions, expirations, computations, timeouts atomic.Uint64
}

// New returns a Cache named name; the name labels logs and metrics.
func New[V any](name string, opts ...Option) *Cache[V] {
	o := options{
		ttl:         DefaultTTL,
		capacity:    DefaultCapacity,
		waitTimeout: DefaultWaitTimeout,
		clock:       time.Now,
		logger:      logging.NewNopLogger(),
		metrics:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity < 1 {
		o.capacity = 1
	}

	c := &Cache[V]{
		name:        name,
		ttl:         o.ttl,
		capacity:    o.capacity,
		waitTimeout: o.waitTimeout,
		now:         o.clock,
		copy:        func(v V) V { return v },
		logger:      o.logger.Named("cache").With(logging.String("cache", name)),
		metrics:     o.metrics,
		items:       make(map[string]*list.Element),
		order:       list.New(),
	}
	if o.copier != nil {
		fn, ok := o.copier.(func(V) V)
		if !ok {
			panic("cache: copier type does not match cache value type")
		}
		c.copy = fn
	}
	return c
}

// Name returns the cache name.
func (c *Cache[V]) Name() string { return c.name }

// Get returns a copy of the live value for key.  An expired entry is
// removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lookup(key, true)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	c.metrics.CacheAccess(c.name, ok)
	if !ok {
		return v, false
	}
	return c.copy(v), true
}

// lookup returns the stored value without copying.  touch refreshes recency.
func (c *Cache[V]) lookup(key string, touch bool) (V, bool) {
	var zero V
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return zero, false
	}
	e := el.Value.(*entry[V])
	now := c.now()
	if !now.Before(e.expiresAt) {
		c.removeElement(el)
		n := len(c.items)
		c.mu.Unlock()
		c.expired(1, n)
		return zero, false
	}
	if touch {
		e.lastAccessedAt = now
		c.order.MoveToFront(el)
	}
	v := e.value
	c.mu.Unlock()
	return v, true
}

// Set stores v under key with a fresh expiry, evicting the least recently
// used entry when the cache is full.
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = v
		e.expiresAt = now.Add(c.ttl)
		e.lastAccessedAt = now
		c.order.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	var evicted []string
	for len(c.items) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted = append(evicted, oldest.Value.(*entry[V]).key)
		c.removeElement(oldest)
	}
	c.items[key] = c.order.PushFront(&entry[V]{
		key:            key,
		value:          v,
		createdAt:      now,
		expiresAt:      now.Add(c.ttl),
		lastAccessedAt: now,
	})
	n := len(c.items)
	c.mu.Unlock()

	for _, k := range evicted {
		c.evictions.Add(1)
		c.metrics.CacheEviction(c.name, ReasonCapacity)
		c.logger.Debug("evicted least recently used entry", logging.String("key", k))
	}
	c.metrics.CacheSize(c.name, n)
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}
	n := len(c.items)
	c.mu.Unlock()
	if ok {
		c.metrics.CacheSize(c.name, n)
	}
	return ok
}

// Len returns the number of stored entries, including expired entries not
// yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()
	c.metrics.CacheSize(c.name, 0)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Evictions:    c.evictions.Load(),
		Expirations:  c.expirations.Load(),
		Computations: c.computations.Load(),
		Timeouts:     c.timeouts.Load(),
		Entries:      c.Len(),
	}
}

// GetOrCompute returns the cached value for key, computing it with fn on a
// miss.  fn runs at most once per key across concurrent callers and its
// error is never cached.
//
// fn receives a context detached from ctx's cancellation, so a computation
// shared by several callers survives any one of them leaving.  A caller
// gives up after the wait timeout with CACHE_001, or when ctx is done; the
// computation keeps running and its result is still stored.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, fn ComputeFunc[V]) (V, error) {
	var zero V
	if c.isClosed() {
		return zero, errors.CacheClosed("cache is closed").WithDetailf("cache=%s", c.name)
	}
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key, true); ok {
			return v, nil
		}
		start := time.Now()
		v, err := fn(detached)
		c.computations.Add(1)
		c.metrics.CacheComputed(c.name, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		c.Set(key, v)
		return v, nil
	})

	timer := time.NewTimer(c.waitTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(V)
		return c.copy(v), nil
	case <-timer.C:
		c.timeouts.Add(1)
		c.metrics.CacheTimeout(c.name)
		c.logger.Warn("computation wait timed out",
			logging.String("key", key), logging.Duration("timeout", c.waitTimeout))
		return zero, errors.ComputationTimeout("timed out waiting for computation").
			WithDetailf("cache=%s timeout=%s", c.name, c.waitTimeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Start launches the background sweeper, which removes expired entries
// every interval until ctx is done or Close is called.  Calling Start more
// than once has no effect.
func (c *Cache[V]) Start(ctx context.Context, interval time.Duration) {
	c.mu.Lock()
	if c.stop != nil || c.closed || interval <= 0 {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if !now.Before(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = prev
	}
	n := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.expired(removed, n)
		c.logger.Debug("swept expired entries", logging.Int("removed", removed))
	}
	return removed
}

// Close stops the sweeper and rejects further GetOrCompute calls.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	stop, done := c.stop, c.done
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

func (c *Cache[V]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// removeElement must be called with c.mu held.
func (c *Cache[V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}

func (c *Cache[V]) expired(n, size int) {
	c.expirations.Add(uint64(n))
	for i := 0; i < n; i++ {
		c.metrics.CacheEviction(c.name, ReasonExpired)
	}
	c.metrics.CacheSize(c.name, size)
}
