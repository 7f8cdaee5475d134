package cache

import (
	"fmt"
	"sync"
	"time"

	"rez-core/internal/shared"
)

// TuneAction journals one parameter adjustment together with the hit
// rate observed before it, so a regressing change can be rolled back
// on the next window.
type TuneAction struct {
	At            time.Time
	Parameter     string
	From          int64
	To            int64
	HitRateBefore float64
	Rollback      bool
}

// tuner periodically inspects aggregate statistics and nudges the hot
// capacity, promotion threshold, and preheater aggressiveness within
// their configured bounds.
type tuner struct {
	cache *TieredCache

	mu       sync.Mutex
	journal  []TuneAction
	lastHits uint64
	lastMiss uint64
	pending  *TuneAction
}

func newTuner(c *TieredCache) *tuner {
	return &tuner{cache: c}
}

// Journal returns a copy of the adjustment history.
func (t *tuner) Journal() []TuneAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TuneAction, len(t.journal))
	copy(out, t.journal)
	return out
}

// runOnce processes one tuning window.
func (t *tuner) runOnce() {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.cache
	hits, misses := c.hits.Load(), c.misses.Load()
	windowHits := hits - t.lastHits
	windowMisses := misses - t.lastMiss
	t.lastHits, t.lastMiss = hits, misses
	total := windowHits + windowMisses
	if total == 0 {
		return
	}
	hitRate := float64(windowHits) / float64(total)

	// Roll back the previous adjustment when the window regressed.
	if t.pending != nil {
		if hitRate < t.pending.HitRateBefore-0.05 {
			t.revert(*t.pending, hitRate)
		}
		t.pending = nil
	}

	switch {
	case hitRate < 0.80:
		capacity := c.hotCap.Load()
		next := int64(shared.Clamp(int(capacity+capacity/4), c.opts.HotMinEntries, c.opts.HotMaxEntries))
		if next != capacity {
			t.adjust("hot_capacity", capacity, next, hitRate, func(v int64) { c.hotCap.Store(v) })
		}
	case hitRate > 0.95:
		capacity := c.hotCap.Load()
		next := int64(shared.Clamp(int(capacity-capacity/10), c.opts.HotMinEntries, c.opts.HotMaxEntries))
		if next != capacity {
			t.adjust("hot_capacity", capacity, next, hitRate, func(v int64) { c.hotCap.Store(v) })
		}
	}

	// An idle promotion path with live warm traffic means the threshold
	// is too high; a flood of promotions means it is too low.
	promotions := c.promotions.Load()
	threshold := c.promoThreshold.Load()
	switch {
	case promotions == 0 && windowHits > 0 && threshold > 1:
		t.adjust("promotion_threshold", threshold, threshold-1, hitRate, func(v int64) { c.promoThreshold.Store(v) })
	case promotions > windowHits/4 && windowHits > 16:
		t.adjust("promotion_threshold", threshold, threshold+1, hitRate, func(v int64) { c.promoThreshold.Store(v) })
	}

	// Preheater aggressiveness follows the miss rate.
	inter := c.preheater.interArrival.Load()
	switch {
	case hitRate < 0.80:
		t.adjust("preheat_inter_arrival", inter, inter+inter/4, hitRate, func(v int64) { c.preheater.interArrival.Store(v) })
	case hitRate > 0.95 && inter > int64(time.Second):
		t.adjust("preheat_inter_arrival", inter, inter-inter/4, hitRate, func(v int64) { c.preheater.interArrival.Store(v) })
	}

	c.resetWindows()
}

func (t *tuner) adjust(parameter string, from, to int64, hitRate float64, apply func(int64)) {
	apply(to)
	action := TuneAction{
		At:            t.cache.clock(),
		Parameter:     parameter,
		From:          from,
		To:            to,
		HitRateBefore: hitRate,
	}
	t.journal = append(t.journal, action)
	t.pending = &action
	t.cache.logEvent(fmt.Sprintf("tuned %s %d -> %d", parameter, from, to))
}

func (t *tuner) revert(action TuneAction, hitRate float64) {
	switch action.Parameter {
	case "hot_capacity":
		t.cache.hotCap.Store(action.From)
	case "promotion_threshold":
		t.cache.promoThreshold.Store(action.From)
	case "preheat_inter_arrival":
		t.cache.preheater.interArrival.Store(action.From)
	}
	t.journal = append(t.journal, TuneAction{
		At:            t.cache.clock(),
		Parameter:     action.Parameter,
		From:          action.To,
		To:            action.From,
		HitRateBefore: hitRate,
		Rollback:      true,
	})
	t.cache.logEvent(fmt.Sprintf("rolled back %s to %d", action.Parameter, action.From))
}
