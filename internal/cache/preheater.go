package cache

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
)

// sample is one (key, access-time) observation.
type sample struct {
	key string
	at  int64
}

// preheater watches access samples for keys that recur faster than the
// configured inter-arrival threshold and re-populates them when they
// are absent. Pushes into the ring are wait-free (fixed size,
// overwrite-oldest); consumption is serialized on the maintenance
// worker. Preheating is best-effort and never blocks a served request.
type preheater struct {
	cache  *TieredCache
	loader Loader

	ring     []atomic.Pointer[sample]
	writeIdx atomic.Uint64

	// interArrival is the tunable recurrence threshold in nanoseconds.
	interArrival atomic.Int64

	// recent dedupes re-population so one hot key is not reloaded on
	// every maintenance pass. Only the maintenance goroutine touches it.
	recent *lru.LRU[string, time.Time]

	preheats atomic.Uint64
}

func newPreheater(c *TieredCache, loader Loader) *preheater {
	recent, _ := lru.NewLRU[string, time.Time](256, nil)
	p := &preheater{
		cache:  c,
		loader: loader,
		ring:   make([]atomic.Pointer[sample], c.opts.PreheatRingSize),
		recent: recent,
	}
	p.interArrival.Store(int64(c.opts.PreheatInterArrival))
	return p
}

// record pushes one access sample. Wait-free: a slot collision simply
// overwrites the oldest observation.
func (p *preheater) record(key string, now time.Time) {
	idx := p.writeIdx.Add(1) - 1
	p.ring[idx%uint64(len(p.ring))].Store(&sample{key: key, at: now.UnixNano()})
}

// runOnce analyzes the ring and schedules re-population for recurring
// absent keys.
func (p *preheater) runOnce() {
	if p.loader == nil {
		return
	}
	byKey := map[string][]int64{}
	for i := range p.ring {
		if s := p.ring[i].Load(); s != nil {
			byKey[s.key] = append(byKey[s.key], s.at)
		}
	}
	threshold := p.interArrival.Load()
	now := p.cache.clock()
	for key, times := range byKey {
		if len(times) < 2 {
			continue
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		var total int64
		for i := 1; i < len(times); i++ {
			total += times[i] - times[i-1]
		}
		mean := total / int64(len(times)-1)
		if mean > threshold {
			continue
		}
		if p.cache.contains(key) {
			continue
		}
		if at, ok := p.recent.Get(key); ok && now.Sub(at) < p.cache.opts.MaintenanceInterval {
			continue
		}
		value, size, ok := p.loader(context.Background(), key)
		if !ok {
			continue
		}
		p.cache.Put(key, value, size)
		p.recent.Add(key, now)
		p.preheats.Add(1)
		p.cache.logEvent("preheated " + key)
	}
}
