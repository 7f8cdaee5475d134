// Package cache implements the two-tier key/value store shared across
// pipeline invocations: a sharded hot tier whose lookups take only a
// per-shard read lock, a warm tier behind a single read/write lock, a predictive
// preheater, and an adaptive tuner. Background maintenance runs on
// dedicated goroutines so request latency is never blocked by it.
package cache

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"rez-core/internal/types"
)

// Loader re-populates a key on behalf of the preheater. Returning
// false means the key cannot be rebuilt and is skipped.
type Loader func(ctx context.Context, key string) (value any, size int64, ok bool)

// entry is one cached value. Access metadata uses atomics so the hot
// get path mutates it under a read lock only.
type entry struct {
	key        string
	value      any
	size       int64
	insertedAt time.Time

	lastAccess  atomic.Int64 // unix nanos
	accessCount atomic.Uint64
	windowCount atomic.Uint64
}

func (e *entry) touch(now time.Time) {
	e.lastAccess.Store(now.UnixNano())
	e.accessCount.Add(1)
	e.windowCount.Add(1)
}

type hotShard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type warmTier struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// TieredCache is the process-wide intelligent cache. Create with New,
// release with Close; Close flushes the warm tier snapshot when
// persistence is configured.
type TieredCache struct {
	opts   types.CacheOptions
	shards []*hotShard
	warm   *warmTier

	// Tunable parameters, adjusted by the tuner within configured
	// bounds.
	hotCap         atomic.Int64
	promoThreshold atomic.Int64

	hits       atomic.Uint64
	misses     atomic.Uint64
	promotions atomic.Uint64
	demotions  atomic.Uint64
	evictions  atomic.Uint64
	bytes      atomic.Int64

	preheater *preheater
	tuner     *tuner

	clock func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a tiered cache and starts its maintenance workers. loader
// may be nil, which disables proactive re-population.
func New(opts types.CacheOptions, loader Loader) *TieredCache {
	opts = opts.Normalize()
	shardCount := opts.Shards
	if shardCount <= 0 {
		shardCount = runtime.GOMAXPROCS(0)
	}
	c := &TieredCache{
		opts:   opts,
		shards: make([]*hotShard, shardCount),
		warm:   &warmTier{entries: map[string]*entry{}},
		clock:  time.Now,
		done:   make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &hotShard{entries: map[string]*entry{}}
	}
	c.hotCap.Store(int64(opts.Hot.MaxEntries))
	c.promoThreshold.Store(int64(opts.PromotionThreshold))
	c.preheater = newPreheater(c, loader)
	c.tuner = newTuner(c)
	if opts.PersistPath != "" {
		c.loadWarmSnapshot(opts.PersistPath)
	}
	c.wg.Add(2)
	go c.maintenanceLoop(c.preheater.runOnce)
	go c.maintenanceLoop(c.tuner.runOnce)
	return c
}

// maintenanceLoop drives one background task opportunistically.
func (c *TieredCache) maintenanceLoop(task func()) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.MaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			task()
		}
	}
}

// Close stops maintenance and flushes the warm snapshot if configured.
func (c *TieredCache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		if c.opts.PersistPath != "" {
			c.saveWarmSnapshot(c.opts.PersistPath)
		}
	})
}

func (c *TieredCache) shardFor(key string) *hotShard {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get looks up a key, hot tier first. A warm hit whose recent access
// count clears the promotion threshold moves the entry to hot.
func (c *TieredCache) Get(key string) (any, bool) {
	now := c.clock()
	shard := c.shardFor(key)
	shard.mu.RLock()
	e, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		e.touch(now)
		c.hits.Add(1)
		c.preheater.record(key, now)
		return e.value, true
	}

	c.warm.mu.RLock()
	e, ok = c.warm.entries[key]
	c.warm.mu.RUnlock()
	if ok {
		e.touch(now)
		c.hits.Add(1)
		c.preheater.record(key, now)
		if e.windowCount.Load() > uint64(c.promoThreshold.Load()) {
			c.promote(key, e)
		}
		return e.value, true
	}

	c.misses.Add(1)
	c.preheater.record(key, now)
	return nil, false
}

// promote moves a warm entry into the hot tier.
func (c *TieredCache) promote(key string, e *entry) {
	c.warm.mu.Lock()
	cur, ok := c.warm.entries[key]
	if !ok || cur != e {
		c.warm.mu.Unlock()
		return
	}
	delete(c.warm.entries, key)
	c.warm.mu.Unlock()
	c.insertHot(e)
	c.promotions.Add(1)
}

// Put inserts or replaces a value in the hot tier. Eviction runs before
// the insert returns so tier caps hold at every observation point.
func (c *TieredCache) Put(key string, value any, size int64) {
	now := c.clock()
	// A stale warm copy must not shadow the new value.
	c.warm.mu.Lock()
	if old, ok := c.warm.entries[key]; ok {
		delete(c.warm.entries, key)
		c.bytes.Add(-old.size)
	}
	c.warm.mu.Unlock()

	e := &entry{key: key, value: value, size: size, insertedAt: now}
	e.lastAccess.Store(now.UnixNano())
	c.insertHot(e)
}

// insertHot places an entry into its shard, demoting victims to warm.
func (c *TieredCache) insertHot(e *entry) {
	shard := c.shardFor(e.key)
	perShard := int(c.hotCap.Load()) / len(c.shards)
	if perShard < 1 {
		perShard = 1
	}
	var victims []*entry
	shard.mu.Lock()
	if old, ok := shard.entries[e.key]; ok {
		c.bytes.Add(-old.size)
	}
	shard.entries[e.key] = e
	c.bytes.Add(e.size)
	for len(shard.entries) > perShard {
		victim := selectVictim(shard.entries, c.opts.Hot.Policy, c.opts.Hot.TTL, c.clock())
		if victim == nil || victim.key == e.key && len(shard.entries) == 1 {
			break
		}
		delete(shard.entries, victim.key)
		victims = append(victims, victim)
	}
	shard.mu.Unlock()
	for _, victim := range victims {
		c.demote(victim)
	}
}

// demote pushes a hot eviction down to warm; warm evictions are
// dropped for good.
func (c *TieredCache) demote(e *entry) {
	c.demotions.Add(1)
	c.warm.mu.Lock()
	c.warm.entries[e.key] = e
	for len(c.warm.entries) > c.opts.Warm.MaxEntries {
		victim := selectVictim(c.warm.entries, c.opts.Warm.Policy, c.opts.Warm.TTL, c.clock())
		if victim == nil {
			break
		}
		delete(c.warm.entries, victim.key)
		c.bytes.Add(-victim.size)
		c.evictions.Add(1)
	}
	c.warm.mu.Unlock()
}

// Invalidate removes a key from both tiers.
func (c *TieredCache) Invalidate(key string) {
	shard := c.shardFor(key)
	shard.mu.Lock()
	if e, ok := shard.entries[key]; ok {
		delete(shard.entries, key)
		c.bytes.Add(-e.size)
	}
	shard.mu.Unlock()
	c.warm.mu.Lock()
	if e, ok := c.warm.entries[key]; ok {
		delete(c.warm.entries, key)
		c.bytes.Add(-e.size)
	}
	c.warm.mu.Unlock()
}

// Clear drops every entry from both tiers.
func (c *TieredCache) Clear() {
	for _, shard := range c.shards {
		shard.mu.Lock()
		shard.entries = map[string]*entry{}
		shard.mu.Unlock()
	}
	c.warm.mu.Lock()
	c.warm.entries = map[string]*entry{}
	c.warm.mu.Unlock()
	c.bytes.Store(0)
}

// Stats snapshots the relaxed counters.
func (c *TieredCache) Stats() types.CacheStats {
	var hot int
	for _, shard := range c.shards {
		shard.mu.RLock()
		hot += len(shard.entries)
		shard.mu.RUnlock()
	}
	c.warm.mu.RLock()
	warm := len(c.warm.entries)
	c.warm.mu.RUnlock()
	bytes := c.bytes.Load()
	if bytes < 0 {
		bytes = 0
	}
	return types.CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Promotions:  c.promotions.Load(),
		Demotions:   c.demotions.Load(),
		Evictions:   c.evictions.Load(),
		Bytes:       uint64(bytes),
		HotEntries:  hot,
		WarmEntries: warm,
	}
}

// HotEntryCount reports the live hot tier size, for cap assertions.
func (c *TieredCache) HotEntryCount() int {
	var hot int
	for _, shard := range c.shards {
		shard.mu.RLock()
		hot += len(shard.entries)
		shard.mu.RUnlock()
	}
	return hot
}

// contains reports whether the key is present in either tier without
// touching access metadata. Used by the preheater.
func (c *TieredCache) contains(key string) bool {
	shard := c.shardFor(key)
	shard.mu.RLock()
	_, ok := shard.entries[key]
	shard.mu.RUnlock()
	if ok {
		return true
	}
	c.warm.mu.RLock()
	_, ok = c.warm.entries[key]
	c.warm.mu.RUnlock()
	return ok
}

// resetWindows zeroes the per-window access counters. Called by the
// tuner at window boundaries.
func (c *TieredCache) resetWindows() {
	for _, shard := range c.shards {
		shard.mu.RLock()
		for _, e := range shard.entries {
			e.windowCount.Store(0)
		}
		shard.mu.RUnlock()
	}
	c.warm.mu.RLock()
	for _, e := range c.warm.entries {
		e.windowCount.Store(0)
	}
	c.warm.mu.RUnlock()
}

func (c *TieredCache) logEvent(msg string) {
	log.Debug().Str("component", "cache").Msg(msg)
}
