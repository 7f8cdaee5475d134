package cache

import (
	"time"

	"rez-core/internal/types"
)

// selectVictim picks the entry to evict from a tier map under the
// given policy. Policies are evaluated at insert time only, keeping
// the hit path free of bookkeeping structures that would need
// exclusive locks. Returns nil when the map is empty.
func selectVictim(entries map[string]*entry, policy types.EvictionPolicy, ttl time.Duration, now time.Time) *entry {
	var victim *entry
	switch policy {
	case types.EvictionLFU:
		for _, e := range entries {
			if victim == nil || less(e.accessCount.Load(), victim.accessCount.Load(), e, victim) {
				victim = e
			}
		}
	case types.EvictionFIFO:
		for _, e := range entries {
			if victim == nil || lessTime(e.insertedAt, victim.insertedAt, e, victim) {
				victim = e
			}
		}
	case types.EvictionTTL:
		// Expired entries go first; otherwise fall back to the oldest.
		cutoff := now.Add(-ttl)
		for _, e := range entries {
			expired := e.insertedAt.Before(cutoff)
			switch {
			case victim == nil:
				victim = e
			case expired && !victim.insertedAt.Before(cutoff):
				victim = e
			case expired == victim.insertedAt.Before(cutoff) && lessTime(e.insertedAt, victim.insertedAt, e, victim):
				victim = e
			}
		}
	default: // LRU
		for _, e := range entries {
			if victim == nil || less(uint64(e.lastAccess.Load()), uint64(victim.lastAccess.Load()), e, victim) {
				victim = e
			}
		}
	}
	return victim
}

// less orders by the policy metric with the key as a deterministic
// tie-break.
func less(a, b uint64, ea, eb *entry) bool {
	if a != b {
		return a < b
	}
	return ea.key < eb.key
}

func lessTime(a, b time.Time, ea, eb *entry) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return ea.key < eb.key
}
